package streaming

import "github.com/Faultbox/imperium/internal/engine/terrain"

// DefaultLODDistances are the largest Chebyshev chunk distances drawn at
// LOD 0, 1 and 2. Anything further is LOD 3.
var DefaultLODDistances = [3]int{2, 4, 6}

// LODForDistance maps a Chebyshev chunk distance to a level of detail.
// The result is always in [terrain.MinLOD, terrain.MaxLOD].
func LODForDistance(d int, thresholds [3]int) int {
	for lod, limit := range thresholds {
		if d <= limit {
			return terrain.MinLOD + lod
		}
	}
	return terrain.MaxLOD
}
