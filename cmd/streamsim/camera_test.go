package main

import (
	"testing"

	"github.com/Faultbox/imperium/internal/world"
)

func TestFlight_StaysInWorld(t *testing.T) {
	for _, p := range []string{PathOrbit, PathSweep} {
		f, err := newFlight(p, 200)
		if err != nil {
			t.Fatalf("newFlight(%s): %v", p, err)
		}
		for i := 0; i < 5000; i++ {
			pos := f.at(float32(i) * 0.1)
			if pos[0] < 0 || pos[1] < 0 || pos[0] > world.WorldTiles || pos[1] > world.WorldTiles {
				t.Fatalf("%s at %d: position %v outside the world", p, i, pos)
			}
		}
	}
}

func TestFlight_Sweep(t *testing.T) {
	f, _ := newFlight(PathSweep, 100)
	if got := f.at(0); got != f.from {
		t.Errorf("start = %v, want %v", got, f.from)
	}
	length := f.to.Sub(f.from).Len()
	end := f.at(length / 100)
	if end.Sub(f.to).Len() > 0.5 {
		t.Errorf("end of first leg = %v, want %v", end, f.to)
	}
	back := f.at(2 * length / 100)
	if back.Sub(f.from).Len() > 0.5 {
		t.Errorf("end of return leg = %v, want %v", back, f.from)
	}
}

func TestFlight_Orbit(t *testing.T) {
	f, _ := newFlight(PathOrbit, 50)
	for i := 0; i < 100; i++ {
		pos := f.at(float32(i))
		if d := pos.Sub(f.center).Len(); d < f.radius-0.5 || d > f.radius+0.5 {
			t.Fatalf("orbit distance %f, want %f", d, f.radius)
		}
	}
}

func TestNewFlight_Unknown(t *testing.T) {
	if _, err := newFlight("zigzag", 1); err == nil {
		t.Error("expected an error for an unknown path")
	}
}
