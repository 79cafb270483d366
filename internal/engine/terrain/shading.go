package terrain

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/imperium/pkg/formats"
)

// Face identifies the direction a quad faces.
type Face int

// Quad facings.
const (
	FaceTop Face = iota
	FaceBottom
	FaceNorth // -Z
	FaceSouth // +Z
	FaceEast  // +X
	FaceWest  // -X
)

var faceShade = [...]float32{
	FaceTop:    1.0,
	FaceBottom: 0.50,
	FaceNorth:  0.80,
	FaceSouth:  0.80,
	FaceEast:   0.88,
	FaceWest:   0.65,
}

var faceNormal = [...]mgl32.Vec3{
	FaceTop:    {0, 1, 0},
	FaceBottom: {0, -1, 0},
	FaceNorth:  {0, 0, -1},
	FaceSouth:  {0, 0, 1},
	FaceEast:   {1, 0, 0},
	FaceWest:   {-1, 0, 0},
}

// Shade returns the directional light multiplier of the face.
func (f Face) Shade() float32 { return faceShade[f] }

// Normal returns the outward unit normal of the face.
func (f Face) Normal() mgl32.Vec3 { return faceNormal[f] }

// Ambient occlusion.
const (
	AOMin      float32 = 0.78                  // Factor with all three occluders present
	AOSideSeam float32 = AOMin + (1-AOMin)*0.5 // Side face corners along the top edge
)

// AOFactor converts an occluder count (0-3) to a brightness factor.
func AOFactor(occluders int) float32 {
	return 1 - float32(occluders)/3*(1-AOMin)
}

// cornerOcclusion counts occluders around a top face corner.
// Two occluding sides hide the diagonal, which counts as fully occluded.
func cornerOcclusion(side1, side2, diagonal bool) int {
	if side1 && side2 {
		return 3
	}
	n := 0
	if side1 {
		n++
	}
	if side2 {
		n++
	}
	if diagonal {
		n++
	}
	return n
}

// Per-vertex noise.
const noiseAmplitude float32 = 0.05

// TileNoise hashes a tile coordinate to a value in [0,1).
func TileNoise(tileX, tileY int) float32 {
	h := uint32(tileX)*0x9e3779b1 ^ uint32(tileY)*0x85ebca6b
	h ^= h >> 16
	h *= 0x7feb352d
	h ^= h >> 15
	h *= 0x846ca68b
	h ^= h >> 16
	return float32(h>>8) / float32(1<<24)
}

func applyNoise(c mgl32.Vec3, tileX, tileY int) mgl32.Vec3 {
	j := (TileNoise(tileX, tileY)*2 - 1) * noiseAmplitude
	return mgl32.Vec3{
		c[0] * (1 + j),
		c[1] * (1 + j*0.8),
		c[2] * (1 + j*0.6),
	}
}

// FogRadius is how many tiles from barbarian territory the border fog reaches.
const FogRadius = 10

// Border fog blend.
const (
	FogPartialMax   float32 = 0.8
	fogDesaturate   float32 = 0.40
	fogDarken       float32 = 0.25
	fogTintStrength float32 = 0.15
)

var fogTint = mgl32.Vec3{0.42, 0.47, 0.56}

// FogStrength returns the fog blend for a tile at distance d from the
// nearest barbarian tile. Barbarian tiles themselves (d == 0) get 1.
func FogStrength(d float32) float32 {
	if d <= 0 {
		return 1
	}
	if d > FogRadius {
		return 0
	}
	return FogPartialMax * (1 - smoothstep(0, FogRadius, d))
}

// BorderFogField fills out with the fog strength of every tile in the chunk.
// Only the chunk's own province array is searched.
func BorderFogField(provinces *[formats.ChunkTiles]byte, out []float32) {
	hasBarbarian := false
	for _, p := range provinces {
		if p == 0 {
			hasBarbarian = true
			break
		}
	}
	if !hasBarbarian {
		clear(out[:formats.ChunkTiles])
		return
	}

	const n = formats.ChunkSize
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			i := y*n + x
			if provinces[i] == 0 {
				out[i] = 1
				continue
			}

			best := math.MaxInt
			for dy := -FogRadius; dy <= FogRadius; dy++ {
				ny := y + dy
				if ny < 0 || ny >= n {
					continue
				}
				for dx := -FogRadius; dx <= FogRadius; dx++ {
					nx := x + dx
					if nx < 0 || nx >= n || provinces[ny*n+nx] != 0 {
						continue
					}
					if d2 := dx*dx + dy*dy; d2 < best {
						best = d2
					}
				}
			}
			if best == math.MaxInt {
				out[i] = 0
				continue
			}
			out[i] = FogStrength(float32(math.Sqrt(float64(best))))
		}
	}
}

func applyFog(c mgl32.Vec3, strength float32) mgl32.Vec3 {
	if strength <= 0 {
		return c
	}
	gray := luminance(c)
	f := lerpVec(c, mgl32.Vec3{gray, gray, gray}, fogDesaturate)
	f = f.Mul(1 - fogDarken)
	f = lerpVec(f, fogTint, fogTintStrength)
	return lerpVec(c, f, strength)
}

// Map edge fade.
var parchmentColor = mgl32.Vec3{0.24, 0.20, 0.15}

// EdgeFadeStrength returns how far a world tile blends toward the map edge
// color: 1 on the boundary, 0 at fadeTiles or further inside.
func EdgeFadeStrength(tileX, tileY, worldTiles int, fadeTiles float32) float32 {
	if fadeTiles <= 0 {
		return 0
	}
	d := min(tileX, tileY, worldTiles-tileX, worldTiles-tileY)
	if d <= 0 {
		return 1
	}
	return 1 - smoothstep(0, fadeTiles, float32(d))
}

// Shader composes the final vertex color of a tile surface.
type Shader struct {
	WorldTiles    int
	EdgeFadeTiles float32
}

// Vertex returns the RGB of one vertex. Stages run in a fixed order:
// palette x face shade x AO, hash noise, border fog, map edge fade.
// tileX/tileY are world tile coordinates of the vertex.
func (s Shader) Vertex(biome Biome, face Face, ao float32, tileX, tileY int, fog float32) mgl32.Vec3 {
	c := biome.BaseColor().Mul(face.Shade() * ao)
	c = applyNoise(c, tileX, tileY)
	c = applyFog(c, fog)
	switch t := EdgeFadeStrength(tileX, tileY, s.WorldTiles, s.EdgeFadeTiles); {
	case t >= 1:
		return parchmentColor
	case t > 0:
		c = lerpVec(c, parchmentColor, t)
	}
	return mgl32.Vec3{clamp01(c[0]), clamp01(c[1]), clamp01(c[2])}
}

// Helper functions

func smoothstep(edge0, edge1, x float32) float32 {
	t := clamp01((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

func luminance(c mgl32.Vec3) float32 {
	return 0.299*c[0] + 0.587*c[1] + 0.114*c[2]
}

func lerpVec(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

func clamp01(v float32) float32 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
