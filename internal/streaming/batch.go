package streaming

import (
	"errors"
	"fmt"

	"github.com/Faultbox/imperium/internal/engine/terrain"
	"github.com/Faultbox/imperium/internal/world"
)

// Batch errors.
var (
	ErrBatchFull     = errors.New("batch is full")
	ErrBatchDisposed = errors.New("batch is disposed")
	ErrBadHandle     = errors.New("invalid batch handle")
)

// slots is a free-list allocator over [0, capacity): freed handles are
// reused last-in first-out before fresh ones are taken from the bump
// pointer.
type slots struct {
	free []int
	next int
	live []bool
}

func newSlots(capacity int) slots {
	return slots{
		free: make([]int, 0, capacity),
		live: make([]bool, capacity),
	}
}

func (s *slots) alloc() (int, bool) {
	if n := len(s.free); n > 0 {
		h := s.free[n-1]
		s.free = s.free[:n-1]
		s.live[h] = true
		return h, true
	}
	if s.next == len(s.live) {
		return 0, false
	}
	h := s.next
	s.next++
	s.live[h] = true
	return h, true
}

func (s *slots) release(h int) bool {
	if h < 0 || h >= len(s.live) || !s.live[h] {
		return false
	}
	s.live[h] = false
	s.free = append(s.free, h)
	return true
}

func (s *slots) used() int {
	return s.next - len(s.free)
}

func (s *slots) reset() {
	s.free = s.free[:0]
	s.next = 0
	clear(s.live)
}

// Batch holds the geometry of many chunks at one LOD plus one placement
// instance per chunk. Capacity is fixed at creation.
type Batch struct {
	lod      int
	disposed bool

	geomSlots slots
	geoms     []*terrain.MeshData

	instSlots slots
	instances []instance

	vertices int
	indices  int
}

type instance struct {
	geometry int
	coord    world.ChunkCoord
}

// NewBatch creates a batch with room for capacity chunks.
func NewBatch(lod, capacity int) *Batch {
	return &Batch{
		lod:       lod,
		geomSlots: newSlots(capacity),
		geoms:     make([]*terrain.MeshData, capacity),
		instSlots: newSlots(capacity),
		instances: make([]instance, capacity),
	}
}

// LOD returns the level of detail the batch holds.
func (b *Batch) LOD() int { return b.lod }

// Capacity returns the number of chunk slots.
func (b *Batch) Capacity() int { return len(b.geoms) }

// Used returns the number of live geometries.
func (b *Batch) Used() int { return b.geomSlots.used() }

// Instances returns the number of live instances.
func (b *Batch) Instances() int { return b.instSlots.used() }

// Totals returns the vertex and index counts of all live geometry.
func (b *Batch) Totals() (vertices, indices int) { return b.vertices, b.indices }

// AddGeometry stores a mesh and returns its handle.
func (b *Batch) AddGeometry(mesh *terrain.MeshData) (int, error) {
	if b.disposed {
		return 0, ErrBatchDisposed
	}
	h, ok := b.geomSlots.alloc()
	if !ok {
		return 0, fmt.Errorf("%w: LOD %d holds %d geometries", ErrBatchFull, b.lod, b.Capacity())
	}
	b.geoms[h] = mesh
	b.vertices += mesh.VertexCount()
	b.indices += len(mesh.Indices)
	return h, nil
}

// Geometry returns the mesh behind a handle, or nil.
func (b *Batch) Geometry(h int) *terrain.MeshData {
	if h < 0 || h >= len(b.geoms) || !b.geomSlots.live[h] {
		return nil
	}
	return b.geoms[h]
}

// RemoveGeometry frees a geometry handle.
func (b *Batch) RemoveGeometry(h int) error {
	if b.disposed {
		return ErrBatchDisposed
	}
	if !b.geomSlots.release(h) {
		return fmt.Errorf("%w: geometry %d", ErrBadHandle, h)
	}
	m := b.geoms[h]
	b.vertices -= m.VertexCount()
	b.indices -= len(m.Indices)
	b.geoms[h] = nil
	return nil
}

// AddInstance places a live geometry at a chunk coordinate.
func (b *Batch) AddInstance(geometry int, coord world.ChunkCoord) (int, error) {
	if b.disposed {
		return 0, ErrBatchDisposed
	}
	if b.Geometry(geometry) == nil {
		return 0, fmt.Errorf("%w: geometry %d", ErrBadHandle, geometry)
	}
	h, ok := b.instSlots.alloc()
	if !ok {
		return 0, fmt.Errorf("%w: LOD %d holds %d instances", ErrBatchFull, b.lod, b.Capacity())
	}
	b.instances[h] = instance{geometry: geometry, coord: coord}
	return h, nil
}

// RemoveInstance frees an instance handle.
func (b *Batch) RemoveInstance(h int) error {
	if b.disposed {
		return ErrBatchDisposed
	}
	if !b.instSlots.release(h) {
		return fmt.Errorf("%w: instance %d", ErrBadHandle, h)
	}
	b.instances[h] = instance{}
	return nil
}

// Dispose releases every geometry and instance. Further adds fail.
func (b *Batch) Dispose() {
	if b.disposed {
		return
	}
	b.disposed = true
	clear(b.geoms)
	clear(b.instances)
	b.geomSlots.reset()
	b.instSlots.reset()
	b.vertices, b.indices = 0, 0
}
