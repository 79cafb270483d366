// Package meshcache stores generated chunk meshes by content hash.
package meshcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/Faultbox/imperium/internal/config"
	"github.com/Faultbox/imperium/internal/engine/terrain"
	"github.com/Faultbox/imperium/pkg/formats"
)

// Cache maps content hashes to meshes. Get returns nil, nil on a miss.
// Implementations are safe for concurrent use. Callers treat any error as
// a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*terrain.MeshData, error)
	Put(ctx context.Context, key string, mesh *terrain.MeshData) error
	Close() error
}

// Hash returns the cache key of a chunk meshed at lod: the hex SHA-256 of
// the chunk coordinate, the LOD and the four attribute arrays. The
// coordinate is part of the key because mesh positions carry the chunk's
// world offset.
func Hash(chunk *formats.ChunkData, lod int) string {
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(chunk.X))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(chunk.Y))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(lod))

	h := sha256.New()
	h.Write(hdr[:])
	h.Write(chunk.Heights[:])
	h.Write(chunk.Biomes[:])
	h.Write(chunk.Flags[:])
	h.Write(chunk.Provinces[:])
	return hex.EncodeToString(h.Sum(nil))
}

// Open creates the cache described by cfg.
func Open(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Kind {
	case config.CacheMemory:
		return NewMemory(cfg.MemoryEntries), nil
	case config.CacheSQLite:
		c, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.CacheNone, "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache kind %q", cfg.Kind)
	}
}

// Nop is a cache that stores nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) (*terrain.MeshData, error) { return nil, nil }

func (Nop) Put(context.Context, string, *terrain.MeshData) error { return nil }

func (Nop) Close() error { return nil }
