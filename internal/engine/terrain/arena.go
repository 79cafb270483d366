package terrain

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/imperium/pkg/formats"
)

// Initial accumulator sizes. A noisy LOD 0 chunk rarely exceeds this many quads.
const arenaQuadHint = 4096

// Arena holds the reusable scratch buffers of one Mesher.
// It must not be shared between goroutines.
type Arena struct {
	positions []float32
	normals   []float32
	colors    []float32
	indices   []uint32

	// Per-call grids, sized for LOD 0
	heights []uint8
	biomes  []uint8
	mask    []int32
	fog     []float32
}

// NewArena allocates an arena with room for a typical LOD 0 chunk.
func NewArena() *Arena {
	return &Arena{
		positions: make([]float32, 0, arenaQuadHint*4*3),
		normals:   make([]float32, 0, arenaQuadHint*4*3),
		colors:    make([]float32, 0, arenaQuadHint*4*3),
		indices:   make([]uint32, 0, arenaQuadHint*6),
		heights:   make([]uint8, formats.ChunkTiles),
		biomes:    make([]uint8, formats.ChunkTiles),
		mask:      make([]int32, formats.ChunkTiles),
		fog:       make([]float32, formats.ChunkTiles),
	}
}

// Reset empties the accumulators and keeps their capacity.
func (a *Arena) Reset() {
	a.positions = a.positions[:0]
	a.normals = a.normals[:0]
	a.colors = a.colors[:0]
	a.indices = a.indices[:0]
}

func (a *Arena) vertexCount() int {
	return len(a.positions) / 3
}

// quad appends four vertices and two triangles. Winding is picked so the
// triangles face along normal.
func (a *Arena) quad(p [4]mgl32.Vec3, normal mgl32.Vec3, c [4]mgl32.Vec3) {
	base := uint32(a.vertexCount())
	for i := 0; i < 4; i++ {
		a.positions = append(a.positions, p[i][0], p[i][1], p[i][2])
		a.normals = append(a.normals, normal[0], normal[1], normal[2])
		a.colors = append(a.colors, c[i][0], c[i][1], c[i][2])
	}

	facing := p[1].Sub(p[0]).Cross(p[2].Sub(p[0])).Dot(normal)
	if facing >= 0 {
		a.indices = append(a.indices, base, base+1, base+2, base, base+2, base+3)
	} else {
		a.indices = append(a.indices, base, base+2, base+1, base, base+3, base+2)
	}
}

// Export copies the accumulated geometry into exact-length slices that the
// arena never touches again.
func (a *Arena) Export() *MeshData {
	return &MeshData{
		Positions: append(make([]float32, 0, len(a.positions)), a.positions...),
		Normals:   append(make([]float32, 0, len(a.normals)), a.normals...),
		Colors:    append(make([]float32, 0, len(a.colors)), a.colors...),
		Indices:   append(make([]uint32, 0, len(a.indices)), a.indices...),
	}
}
