package main

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/imperium/internal/world"
)

// Flight paths.
const (
	PathOrbit = "orbit"
	PathSweep = "sweep"
)

// flight moves a virtual camera over the world's ground plane.
// Positions are world tiles on the X/Z plane.
type flight struct {
	path   string
	speed  float32 // Tiles per second
	center mgl32.Vec2
	radius float32

	// Sweep state
	from, to mgl32.Vec2
}

func newFlight(path string, speed float32) (*flight, error) {
	half := float32(world.WorldTiles) / 2
	f := &flight{
		path:   path,
		speed:  speed,
		center: mgl32.Vec2{half, half},
		radius: half * 0.6,
		from:   mgl32.Vec2{64, 64},
		to:     mgl32.Vec2{world.WorldTiles - 64, world.WorldTiles - 64},
	}
	switch path {
	case PathOrbit, PathSweep:
		return f, nil
	default:
		return nil, fmt.Errorf("unknown flight path %q", path)
	}
}

// at returns the camera position t seconds into the flight.
func (f *flight) at(t float32) mgl32.Vec2 {
	switch f.path {
	case PathSweep:
		// Back and forth along the diagonal
		leg := f.to.Sub(f.from)
		length := leg.Len()
		d := float32(math.Mod(float64(f.speed*t), float64(2*length)))
		if d > length {
			d = 2*length - d
		}
		return f.from.Add(leg.Normalize().Mul(d))
	default:
		angle := f.speed * t / f.radius
		dir := mgl32.Vec2{float32(math.Cos(float64(angle))), float32(math.Sin(float64(angle)))}
		return f.center.Add(dir.Mul(f.radius))
	}
}
