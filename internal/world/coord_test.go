package world

import "testing"

func TestChunkFromWorld(t *testing.T) {
	tests := []struct {
		x, z float64
		want ChunkCoord
	}{
		{0, 0, ChunkCoord{0, 0}},
		{31.9, 32, ChunkCoord{0, 1}},
		{1024, 1024, ChunkCoord{32, 32}},
		{-5, -100, ChunkCoord{0, 0}},
		{5000, 2047, ChunkCoord{63, 63}},
		{2048, 64, ChunkCoord{63, 2}},
	}

	for _, tc := range tests {
		if got := ChunkFromWorld(tc.x, tc.z); got != tc.want {
			t.Errorf("ChunkFromWorld(%v,%v) = %v, want %v", tc.x, tc.z, got, tc.want)
		}
	}
}

func TestChebyshev(t *testing.T) {
	a := ChunkCoord{10, 10}
	tests := []struct {
		b    ChunkCoord
		want int
	}{
		{ChunkCoord{10, 10}, 0},
		{ChunkCoord{13, 9}, 3},
		{ChunkCoord{8, 15}, 5},
		{ChunkCoord{4, 4}, 6},
	}
	for _, tc := range tests {
		if got := Chebyshev(a, tc.b); got != tc.want {
			t.Errorf("Chebyshev(%v,%v) = %d, want %d", a, tc.b, got, tc.want)
		}
	}
}

func TestSpiral_Order(t *testing.T) {
	center := ChunkCoord{20, 20}
	coords := Spiral(center, 3)

	if len(coords) != 49 {
		t.Fatalf("expected 49 coords, got %d", len(coords))
	}
	if coords[0] != center {
		t.Errorf("expected center first, got %v", coords[0])
	}

	seen := make(map[ChunkCoord]bool)
	last := 0
	for _, c := range coords {
		if seen[c] {
			t.Fatalf("duplicate coord %v", c)
		}
		seen[c] = true

		d := Chebyshev(center, c)
		if d < last {
			t.Fatalf("coord %v at distance %d after distance %d", c, d, last)
		}
		last = d
	}
}

func TestSpiral_ClipsToGrid(t *testing.T) {
	coords := Spiral(ChunkCoord{0, 0}, 2)
	if len(coords) != 9 {
		t.Errorf("expected 9 in-bounds coords at the corner, got %d", len(coords))
	}
	for _, c := range coords {
		if !c.InBounds() {
			t.Errorf("out of bounds coord %v", c)
		}
	}

	if Spiral(ChunkCoord{5, 5}, -1) != nil {
		t.Error("expected nil for negative radius")
	}
}

func TestSpiral_Deterministic(t *testing.T) {
	a := Spiral(ChunkCoord{30, 12}, 4)
	b := Spiral(ChunkCoord{30, 12}, 4)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("spiral differs at %d: %v vs %v", i, a[i], b[i])
		}
	}
}
