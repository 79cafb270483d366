package streaming

import (
	"testing"

	"github.com/Faultbox/imperium/internal/engine/terrain"
)

func TestLODForDistance(t *testing.T) {
	tests := []struct {
		distance int
		expected int
	}{
		{0, 0},
		{2, 0},
		{3, 1},
		{4, 1},
		{5, 2},
		{6, 2},
		{7, 3},
		{63, 3},
	}
	for _, tc := range tests {
		if got := LODForDistance(tc.distance, DefaultLODDistances); got != tc.expected {
			t.Errorf("LODForDistance(%d) = %d, want %d", tc.distance, got, tc.expected)
		}
	}
}

func TestLODForDistance_Range(t *testing.T) {
	thresholds := [][3]int{
		{0, 0, 0},
		{1, 2, 3},
		{10, 20, 30},
		{-1, -1, -1},
	}
	for _, th := range thresholds {
		for d := 0; d < 64; d++ {
			lod := LODForDistance(d, th)
			if lod < terrain.MinLOD || lod > terrain.MaxLOD {
				t.Fatalf("LODForDistance(%d, %v) = %d out of range", d, th, lod)
			}
		}
	}
}
