// Package terrain builds chunk surface meshes from tile attribute arrays.
package terrain

import (
	"errors"
	"fmt"
	"math"
)

// Mesh validation errors.
var (
	ErrMeshArrayLength = errors.New("mesh attribute arrays differ in length")
	ErrMeshIndexCount  = errors.New("mesh index count not divisible by 3")
	ErrMeshIndexRange  = errors.New("mesh index out of range")
	ErrMeshNotFinite   = errors.New("mesh position or normal not finite")
	ErrMeshColorRange  = errors.New("mesh color outside [0,1]")
)

// MeshData holds one chunk's triangulated surface.
// Positions, normals and colors carry 3 components per vertex.
// Indices form a triangle list. MeshData is not modified after it is returned.
type MeshData struct {
	Positions []float32 `json:"positions"`
	Normals   []float32 `json:"normals"`
	Colors    []float32 `json:"colors"`
	Indices   []uint32  `json:"indices"`
}

// VertexCount returns the number of vertices.
func (m *MeshData) VertexCount() int {
	return len(m.Positions) / 3
}

// TriangleCount returns the number of triangles.
func (m *MeshData) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty reports whether the mesh has no geometry.
func (m *MeshData) IsEmpty() bool {
	return len(m.Positions) == 0 && len(m.Indices) == 0
}

// ByteSize returns the size of all attribute buffers in bytes.
func (m *MeshData) ByteSize() int {
	return 4 * (len(m.Positions) + len(m.Normals) + len(m.Colors) + len(m.Indices))
}

// Validate checks the structural invariants of a mesh.
func Validate(m *MeshData) error {
	if len(m.Positions) != len(m.Normals) || len(m.Positions) != len(m.Colors) || len(m.Positions)%3 != 0 {
		return fmt.Errorf("%w: positions=%d normals=%d colors=%d",
			ErrMeshArrayLength, len(m.Positions), len(m.Normals), len(m.Colors))
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d", ErrMeshIndexCount, len(m.Indices))
	}

	vc := uint32(m.VertexCount())
	for i, idx := range m.Indices {
		if idx >= vc {
			return fmt.Errorf("%w: indices[%d]=%d, vertex count %d", ErrMeshIndexRange, i, idx, vc)
		}
	}

	for i := range m.Positions {
		if !finite(m.Positions[i]) || !finite(m.Normals[i]) {
			return fmt.Errorf("%w: component %d", ErrMeshNotFinite, i)
		}
		if c := m.Colors[i]; c < 0 || c > 1 || c != c {
			return fmt.Errorf("%w: colors[%d]=%f", ErrMeshColorRange, i, c)
		}
	}
	return nil
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
