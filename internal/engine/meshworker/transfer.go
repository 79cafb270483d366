package meshworker

import (
	"unsafe"

	"github.com/Faultbox/imperium/internal/engine/terrain"
)

// Buffer is one attribute array handed from a worker to its caller.
type Buffer struct {
	Name string
	Size int // Bytes

	data unsafe.Pointer
}

// TransferSet lists the distinct non-empty buffers of a mesh. Empty arrays
// have nothing to move and aliased arrays are listed once.
func TransferSet(m *terrain.MeshData) []Buffer {
	if m == nil {
		return nil
	}
	candidates := [...]Buffer{
		{"positions", 4 * len(m.Positions), unsafe.Pointer(unsafe.SliceData(m.Positions))},
		{"normals", 4 * len(m.Normals), unsafe.Pointer(unsafe.SliceData(m.Normals))},
		{"colors", 4 * len(m.Colors), unsafe.Pointer(unsafe.SliceData(m.Colors))},
		{"indices", 4 * len(m.Indices), unsafe.Pointer(unsafe.SliceData(m.Indices))},
	}

	set := make([]Buffer, 0, len(candidates))
	for _, b := range candidates {
		if b.Size == 0 || b.data == nil {
			continue
		}
		dup := false
		for _, seen := range set {
			if seen.data == b.data {
				dup = true
				break
			}
		}
		if !dup {
			set = append(set, b)
		}
	}
	return set
}

// TransferSize returns the total bytes of a transfer set.
func TransferSize(set []Buffer) int {
	n := 0
	for _, b := range set {
		n += b.Size
	}
	return n
}
