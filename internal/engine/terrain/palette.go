package terrain

import "github.com/go-gl/mathgl/mgl32"

// Biome identifies the ground cover of a tile.
type Biome uint8

// Biome ids stored in chunk records.
const (
	BiomeDeepOcean Biome = iota
	BiomeShallowSea
	BiomeMediterranean
	BiomeGrassland
	BiomeForest
	BiomeDesert
	BiomeSteppe
	BiomeMarsh
	BiomeHills
	BiomeMountain
	BiomeSnow
	BiomeBeach
	biomeCount
)

type biomeInfo struct {
	name  string
	color mgl32.Vec3
}

var biomes = [biomeCount]biomeInfo{
	BiomeDeepOcean:     {"DeepOcean", mgl32.Vec3{0.12, 0.24, 0.42}},
	BiomeShallowSea:    {"ShallowSea", mgl32.Vec3{0.22, 0.42, 0.58}},
	BiomeMediterranean: {"Mediterranean", mgl32.Vec3{0.56, 0.60, 0.34}},
	BiomeGrassland:     {"Grassland", mgl32.Vec3{0.45, 0.62, 0.30}},
	BiomeForest:        {"Forest", mgl32.Vec3{0.24, 0.42, 0.20}},
	BiomeDesert:        {"Desert", mgl32.Vec3{0.86, 0.76, 0.52}},
	BiomeSteppe:        {"Steppe", mgl32.Vec3{0.70, 0.66, 0.42}},
	BiomeMarsh:         {"Marsh", mgl32.Vec3{0.36, 0.44, 0.32}},
	BiomeHills:         {"Hills", mgl32.Vec3{0.52, 0.50, 0.34}},
	BiomeMountain:      {"Mountain", mgl32.Vec3{0.50, 0.47, 0.44}},
	BiomeSnow:          {"Snow", mgl32.Vec3{0.93, 0.94, 0.96}},
	BiomeBeach:         {"Beach", mgl32.Vec3{0.90, 0.84, 0.64}},
}

// Color for biome ids without a palette entry.
var unknownBiomeColor = mgl32.Vec3{0.5, 0.5, 0.5}

// String returns the biome name.
func (b Biome) String() string {
	if b < biomeCount {
		return biomes[b].name
	}
	return "Unknown"
}

// BaseColor returns the palette RGB of a biome.
func (b Biome) BaseColor() mgl32.Vec3 {
	if b < biomeCount {
		return biomes[b].color
	}
	return unknownBiomeColor
}
