package terrain

import (
	"errors"
	"fmt"

	"github.com/Faultbox/imperium/pkg/formats"
)

// Level of detail range.
const (
	MinLOD = 0
	MaxLOD = 3
)

// ErrInvalidLOD is returned for a level outside [MinLOD, MaxLOD].
var ErrInvalidLOD = errors.New("invalid LOD level")

var lodSteps = [...]int{1, 2, 4, formats.ChunkSize}

// LODStep returns the tile stride sampled at a level.
func LODStep(lod int) (int, error) {
	if lod < MinLOD || lod > MaxLOD {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLOD, lod)
	}
	return lodSteps[lod], nil
}

// LODGridSize returns the cells per chunk edge at a level.
func LODGridSize(lod int) (int, error) {
	step, err := LODStep(lod)
	if err != nil {
		return 0, err
	}
	return formats.ChunkSize / step, nil
}
