// Package config handles streaming configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all streaming core settings.
type Config struct {
	Streaming StreamingConfig `yaml:"streaming"`
	Mesher    MesherConfig    `yaml:"mesher"`
	Cache     CacheConfig     `yaml:"cache"`
	Data      DataConfig      `yaml:"data"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StreamingConfig holds chunk streaming settings. Radii and LOD distances
// are Chebyshev distances in chunks.
type StreamingConfig struct {
	LoadRadius   int           `yaml:"load_radius"`
	UnloadRadius int           `yaml:"unload_radius"`
	LoadBudget   int           `yaml:"load_budget"`   // New loads started per update
	LODDistances [3]int        `yaml:"lod_distances"` // Upper bounds of LOD 0, 1 and 2
	MeshTimeout  time.Duration `yaml:"mesh_timeout"`
	Workers      int           `yaml:"workers"` // 0 uses one per CPU
}

// MesherConfig holds mesh coloring settings.
type MesherConfig struct {
	EdgeFadeTiles float32 `yaml:"edge_fade_tiles"`
}

// Cache kinds.
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheNone   = "none"
)

// CacheConfig holds mesh cache settings.
type CacheConfig struct {
	Kind          string `yaml:"kind"`
	Path          string `yaml:"path"` // SQLite database file
	MemoryEntries int    `yaml:"memory_entries"`
}

// Chunk data providers.
const (
	ProviderProcedural = "procedural"
	ProviderDirectory  = "directory"
	ProviderRemote     = "remote"
)

// DataConfig holds chunk data source settings.
type DataConfig struct {
	Provider  string `yaml:"provider"`
	ChunkDir  string `yaml:"chunk_dir"`
	RemoteURL string `yaml:"remote_url"`
	Seed      int64  `yaml:"seed"`
}

// ServerConfig holds chunk server settings.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Streaming: StreamingConfig{
			LoadRadius:   8,
			UnloadRadius: 12,
			LoadBudget:   2,
			LODDistances: [3]int{2, 4, 6},
			MeshTimeout:  5 * time.Second,
			Workers:      0,
		},
		Mesher: MesherConfig{
			EdgeFadeTiles: 24,
		},
		Cache: CacheConfig{
			Kind:          CacheMemory,
			Path:          "meshcache.db",
			MemoryEntries: 4096,
		},
		Data: DataConfig{
			Provider:  ProviderProcedural,
			ChunkDir:  "chunks",
			RemoteURL: "ws://127.0.0.1:8710/chunks",
			Seed:      1,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8710",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks settings for consistency.
func (c *Config) Validate() error {
	var errs []error

	s := c.Streaming
	if s.LoadRadius < 0 {
		errs = append(errs, fmt.Errorf("streaming.load_radius %d is negative", s.LoadRadius))
	}
	if s.UnloadRadius < s.LoadRadius {
		errs = append(errs, fmt.Errorf("streaming.unload_radius %d is below load_radius %d", s.UnloadRadius, s.LoadRadius))
	}
	if s.LoadBudget < 1 {
		errs = append(errs, fmt.Errorf("streaming.load_budget %d must be at least 1", s.LoadBudget))
	}
	if s.LODDistances[0] < 0 || s.LODDistances[0] > s.LODDistances[1] || s.LODDistances[1] > s.LODDistances[2] {
		errs = append(errs, fmt.Errorf("streaming.lod_distances %v must be non-negative and ascending", s.LODDistances))
	}
	if s.MeshTimeout <= 0 {
		errs = append(errs, fmt.Errorf("streaming.mesh_timeout %v must be positive", s.MeshTimeout))
	}
	if s.Workers < 0 {
		errs = append(errs, fmt.Errorf("streaming.workers %d is negative", s.Workers))
	}

	if c.Mesher.EdgeFadeTiles < 0 {
		errs = append(errs, fmt.Errorf("mesher.edge_fade_tiles %v is negative", c.Mesher.EdgeFadeTiles))
	}

	switch c.Cache.Kind {
	case CacheMemory:
		if c.Cache.MemoryEntries < 1 {
			errs = append(errs, fmt.Errorf("cache.memory_entries %d must be at least 1", c.Cache.MemoryEntries))
		}
	case CacheSQLite:
		if c.Cache.Path == "" {
			errs = append(errs, errors.New("cache.path is required for sqlite cache"))
		}
	case CacheNone:
	default:
		errs = append(errs, fmt.Errorf("unknown cache.kind %q", c.Cache.Kind))
	}

	switch c.Data.Provider {
	case ProviderProcedural:
	case ProviderDirectory:
		if c.Data.ChunkDir == "" {
			errs = append(errs, errors.New("data.chunk_dir is required for directory provider"))
		}
	case ProviderRemote:
		if c.Data.RemoteURL == "" {
			errs = append(errs, errors.New("data.remote_url is required for remote provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown data.provider %q", c.Data.Provider))
	}

	return errors.Join(errs...)
}
