package provider

import (
	"math"

	"github.com/ojrac/opensimplex-go"

	"github.com/Faultbox/imperium/internal/engine/terrain"
	"github.com/Faultbox/imperium/internal/world"
	"github.com/Faultbox/imperium/pkg/formats"
)

// Noise scales in world tiles.
const (
	continentScale = 1.0 / 700
	detailScale    = 1.0 / 90
	moistureScale  = 1.0 / 400
	provinceCell   = 192 // Province cell edge
)

// Procedural generates a deterministic Mediterranean world from a seed.
type Procedural struct {
	seed      int64
	elevation opensimplex.Noise32
	detail    opensimplex.Noise32
	moisture  opensimplex.Noise32
	claims    opensimplex.Noise32
}

// NewProcedural creates a generator. Equal seeds give equal worlds.
func NewProcedural(seed int64) *Procedural {
	return &Procedural{
		seed:      seed,
		elevation: opensimplex.New32(seed),
		detail:    opensimplex.New32(seed + 1),
		moisture:  opensimplex.New32(seed + 2),
		claims:    opensimplex.New32(seed + 3),
	}
}

// Chunk generates one chunk. Coordinates outside the grid have no data.
func (p *Procedural) Chunk(cx, cy int) *formats.ChunkData {
	if !inGrid(cx, cy) {
		return nil
	}

	c := &formats.ChunkData{X: cx, Y: cy}
	for ly := 0; ly < formats.ChunkSize; ly++ {
		for lx := 0; lx < formats.ChunkSize; lx++ {
			tx := cx*formats.ChunkSize + lx
			ty := cy*formats.ChunkSize + ly
			i := formats.TileIndex(lx, ly)

			h := p.Height(tx, ty)
			c.Heights[i] = byte(h)
			c.Biomes[i] = byte(p.biome(tx, ty, h))
			c.Provinces[i] = byte(p.province(tx, ty, h))
		}
	}
	return c
}

// Height returns the column height of a world tile in [1, MaxHeight].
func (p *Procedural) Height(tx, ty int) int {
	x, y := float32(tx), float32(ty)

	// Continents plus ridged detail, then a falloff toward the map edge.
	e := fbm(p.elevation, x*continentScale, y*continentScale, 4)
	d := 1 - float32(math.Abs(float64(p.detail.Eval2(x*detailScale, y*detailScale))))
	e = e*0.8 + (d-0.5)*0.25

	edge := edgeFalloff(tx, ty)
	v := (e*0.5+0.5)*edge*1.1 - 0.05

	h := int(v * world.MaxHeight)
	return max(1, min(h, world.MaxHeight))
}

func (p *Procedural) biome(tx, ty, h int) terrain.Biome {
	m := p.moisture.Eval2(float32(tx)*moistureScale, float32(ty)*moistureScale)
	switch {
	case h <= world.WaterLevel-8:
		return terrain.BiomeDeepOcean
	case h <= world.WaterLevel:
		return terrain.BiomeShallowSea
	case h <= world.CoastMax:
		return terrain.BiomeBeach
	case h <= world.FlatlandMax:
		switch {
		case m > 0.35:
			return terrain.BiomeMarsh
		case m > 0:
			return terrain.BiomeGrassland
		case m > -0.35:
			return terrain.BiomeMediterranean
		default:
			return terrain.BiomeDesert
		}
	case h <= world.HillMax:
		if m > 0.1 {
			return terrain.BiomeForest
		}
		if m < -0.4 {
			return terrain.BiomeSteppe
		}
		return terrain.BiomeHills
	case h <= world.HighPeakMax:
		return terrain.BiomeMountain
	default:
		return terrain.BiomeSnow
	}
}

// province assigns land to jittered cells. Sea and unclaimed wilderness
// are barbarian.
func (p *Procedural) province(tx, ty, h int) int {
	if h <= world.WaterLevel {
		return world.BarbarianID
	}
	x, y := float32(tx), float32(ty)
	if p.claims.Eval2(x/300, y/300) < -0.45 {
		return world.BarbarianID
	}

	jx := p.claims.Eval2(x/60+100, y/60) * provinceCell * 0.3
	jy := p.claims.Eval2(x/60, y/60+100) * provinceCell * 0.3
	cellX := int(math.Floor(float64((x + jx) / provinceCell)))
	cellY := int(math.Floor(float64((y + jy) / provinceCell)))

	hsh := uint32(cellX)*0x9e3779b1 ^ uint32(cellY)*0x85ebca6b ^ uint32(p.seed)
	hsh ^= hsh >> 15
	hsh *= 0x2c1b3c6d
	hsh ^= hsh >> 12
	return 1 + int(hsh%world.ProvinceMax)
}

func fbm(n opensimplex.Noise32, x, y float32, octaves int) float32 {
	var sum, amp, norm float32 = 0, 1, 0
	for i := 0; i < octaves; i++ {
		sum += n.Eval2(x, y) * amp
		norm += amp
		amp *= 0.5
		x *= 2
		y *= 2
	}
	return sum / norm
}

// edgeFalloff is 1 in the interior and falls to 0 at the map border.
func edgeFalloff(tx, ty int) float32 {
	const margin = 160
	d := min(tx, ty, world.WorldTiles-1-tx, world.WorldTiles-1-ty)
	if d >= margin {
		return 1
	}
	t := float32(d) / margin
	return t * t * (3 - 2*t)
}
