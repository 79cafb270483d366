package meshcache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Faultbox/imperium/internal/engine/terrain"
)

// Memory is an in-process LRU cache bounded by entry count. It is safe
// for concurrent use.
type Memory struct {
	entries *lru.Cache[string, *terrain.MeshData]
}

// NewMemory creates a cache holding at most maxEntries meshes.
func NewMemory(maxEntries int) *Memory {
	if maxEntries < 1 {
		maxEntries = 1
	}
	// New only fails for a non-positive size.
	entries, _ := lru.New[string, *terrain.MeshData](maxEntries)
	return &Memory{entries: entries}
}

// Get returns the cached mesh for key, or nil.
func (c *Memory) Get(_ context.Context, key string) (*terrain.MeshData, error) {
	mesh, ok := c.entries.Get(key)
	if !ok {
		return nil, nil
	}
	return mesh, nil
}

// Put stores a mesh, evicting the least recently used entry when full.
// Meshes are immutable, so the value is shared rather than copied.
func (c *Memory) Put(_ context.Context, key string, mesh *terrain.MeshData) error {
	c.entries.Add(key, mesh)
	return nil
}

// Len returns the number of cached meshes.
func (c *Memory) Len() int {
	return c.entries.Len()
}

// Close drops every entry.
func (c *Memory) Close() error {
	c.entries.Purge()
	return nil
}
