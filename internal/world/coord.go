// Package world defines the tile and chunk grid of the Imperium map.
package world

import (
	"fmt"
	"math"

	"github.com/Faultbox/imperium/pkg/formats"
)

// Grid dimensions.
const (
	ChunkSize  = formats.ChunkSize     // Tiles per chunk edge
	GridSize   = formats.ChunkGridSize // Chunks per world edge
	WorldTiles = ChunkSize * GridSize  // Tiles per world edge (2048)
)

// ChunkCoord identifies a chunk in the world grid.
type ChunkCoord struct {
	X, Y int
}

// String returns the coordinate as "(x,y)".
func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// InBounds reports whether the coordinate lies inside the grid.
func (c ChunkCoord) InBounds() bool {
	return c.X >= 0 && c.Y >= 0 && c.X < GridSize && c.Y < GridSize
}

// ChunkFromWorld maps a world tile position to its chunk, clamped to the grid.
// World X runs east along tile x, world Z runs south along tile y.
func ChunkFromWorld(worldX, worldZ float64) ChunkCoord {
	return ChunkCoord{
		X: clampChunk(int(math.Floor(worldX / ChunkSize))),
		Y: clampChunk(int(math.Floor(worldZ / ChunkSize))),
	}
}

func clampChunk(v int) int {
	if v < 0 {
		return 0
	}
	if v >= GridSize {
		return GridSize - 1
	}
	return v
}

// Chebyshev returns max(|dx|, |dy|) between two chunks.
func Chebyshev(a, b ChunkCoord) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return max(dx, dy)
}

// Spiral returns every in-bounds chunk within radius of center, ordered
// center first and then ring by ring outward. Each ring is walked
// clockwise starting at its north-west corner.
func Spiral(center ChunkCoord, radius int) []ChunkCoord {
	if radius < 0 {
		return nil
	}

	side := 2*radius + 1
	out := make([]ChunkCoord, 0, side*side)
	if center.InBounds() {
		out = append(out, center)
	}

	for r := 1; r <= radius; r++ {
		// North edge, west to east
		for x := -r; x <= r; x++ {
			out = appendInBounds(out, center.X+x, center.Y-r)
		}
		// East edge, north to south
		for y := -r + 1; y <= r; y++ {
			out = appendInBounds(out, center.X+r, center.Y+y)
		}
		// South edge, east to west
		for x := r - 1; x >= -r; x-- {
			out = appendInBounds(out, center.X+x, center.Y+r)
		}
		// West edge, south to north
		for y := r - 1; y > -r; y-- {
			out = appendInBounds(out, center.X-r, center.Y+y)
		}
	}
	return out
}

func appendInBounds(out []ChunkCoord, x, y int) []ChunkCoord {
	c := ChunkCoord{X: x, Y: y}
	if c.InBounds() {
		out = append(out, c)
	}
	return out
}
