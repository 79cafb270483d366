package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/Faultbox/imperium/internal/engine/terrain"
	"github.com/Faultbox/imperium/internal/provider"
	"github.com/Faultbox/imperium/internal/world"
	"github.com/Faultbox/imperium/pkg/formats"
)

const (
	defaultBiome = byte(world.DefaultBiome)
	lodLevels    = terrain.MaxLOD + 1
	sampleItems  = 4
)

// Manifest describes a generated chunk directory.
type Manifest struct {
	GeneratedAt string         `json:"generated_at"`
	MapChunks   int            `json:"map_chunks"`
	ChunkSize   int            `json:"chunk_size"`
	TileBytes   int            `json:"tile_bytes"`
	LODLevels   int            `json:"lod_levels"`
	Items       []ManifestItem `json:"items"`
	TotalChunks int            `json:"total_chunks"`
}

// ManifestItem is one written chunk file.
type ManifestItem struct {
	LOD    int    `json:"lod"`
	ChunkX int    `json:"chunk_x"`
	ChunkY int    `json:"chunk_y"`
	Path   string `json:"path"`
	Bytes  int    `json:"bytes"`
}

// Options controls a generation run.
type Options struct {
	Dir       string
	Extent    int // Chunks per edge to write, at most the world grid
	LODLevels int // Levels 0..LODLevels-1
	Source    func(cx, cy, lod int) *formats.ChunkData
	Now       func() time.Time
}

// simpleNoise is the placeholder height field: a low frequency sine and
// cosine product between 32 and 78, shifted per LOD.
func simpleNoise(x, y, lod int) int {
	scale := float64(lod+1) * 0.001
	v := math.Sin((float64(x)*0.11+float64(lod)*17.0)*scale) * math.Cos((float64(y)*0.13+float64(lod)*23.0)*scale)
	h := 32 + int(46*(0.5+0.5*v))
	return max(0, min(formats.ChunkMaxHeight, h))
}

// simpleChunk builds a placeholder chunk with a uniform biome and
// alternating province hints.
func simpleChunk(cx, cy, lod int) *formats.ChunkData {
	c := &formats.ChunkData{X: cx, Y: cy}
	province := byte((cx + cy) % 2)
	for ly := 0; ly < formats.ChunkSize; ly++ {
		for lx := 0; lx < formats.ChunkSize; lx++ {
			i := formats.TileIndex(lx, ly)
			c.Heights[i] = byte(simpleNoise(cx*formats.ChunkSize+lx, cy*formats.ChunkSize+ly, lod))
			c.Biomes[i] = defaultBiome
			c.Provinces[i] = province
		}
	}
	return c
}

// proceduralSource serves the same procedural LOD 0 data at every level.
func proceduralSource(seed int64) func(cx, cy, lod int) *formats.ChunkData {
	p := provider.NewProcedural(seed)
	return func(cx, cy, _ int) *formats.ChunkData {
		return p.Chunk(cx, cy)
	}
}

// Generate writes chunk_LL_XX_YY.bin for every level and chunk plus
// manifest.json into opts.Dir.
func Generate(opts Options) (*Manifest, error) {
	if opts.Extent <= 0 || opts.Extent > formats.ChunkGridSize {
		opts.Extent = formats.ChunkGridSize
	}
	if opts.LODLevels <= 0 || opts.LODLevels > lodLevels {
		opts.LODLevels = lodLevels
	}
	if opts.Source == nil {
		opts.Source = simpleChunk
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating chunk directory: %w", err)
	}

	m := &Manifest{
		MapChunks: formats.ChunkGridSize,
		ChunkSize: formats.ChunkSize,
		TileBytes: formats.ChunkTiles,
		LODLevels: opts.LODLevels,
	}

	for lod := 0; lod < opts.LODLevels; lod++ {
		for cx := 0; cx < opts.Extent; cx++ {
			for cy := 0; cy < opts.Extent; cy++ {
				chunk := opts.Source(cx, cy, lod)
				if chunk == nil {
					continue
				}
				if problems := formats.ValidateChunk(chunk); len(problems) > 0 {
					return nil, fmt.Errorf("chunk (%d,%d) LOD %d: %v", cx, cy, lod, problems)
				}

				name := formats.ChunkFileName(lod, cx, cy)
				if err := formats.WriteChunkFile(filepath.Join(opts.Dir, name), chunk); err != nil {
					return nil, fmt.Errorf("writing %s: %w", name, err)
				}

				if len(m.Items) < sampleItems {
					m.Items = append(m.Items, ManifestItem{
						LOD:    lod,
						ChunkX: cx,
						ChunkY: cy,
						Path:   name,
						Bytes:  formats.ChunkRecordSize,
					})
				}
				m.TotalChunks++
			}
		}
	}
	if m.Items == nil {
		m.Items = []ManifestItem{}
	}

	m.GeneratedAt = opts.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(opts.Dir, "manifest.json"), data, 0644); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}
	return m, nil
}
