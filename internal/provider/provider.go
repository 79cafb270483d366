// Package provider supplies raw chunk attribute arrays to the streamer.
package provider

import (
	"context"
	"fmt"

	"github.com/Faultbox/imperium/internal/config"
	"github.com/Faultbox/imperium/pkg/formats"
)

// Provider returns the LOD 0 data of a chunk, or nil when no data exists
// for the coordinate. Chunk is called from the streamer's goroutine and
// must not block for long.
type Provider interface {
	Chunk(cx, cy int) *formats.ChunkData
}

// Func adapts a function to the Provider interface.
type Func func(cx, cy int) *formats.ChunkData

// Chunk calls f.
func (f Func) Chunk(cx, cy int) *formats.ChunkData { return f(cx, cy) }

// Open creates the provider described by cfg. The returned close function
// releases any connection and is never nil.
func Open(ctx context.Context, cfg config.DataConfig) (Provider, func(), error) {
	switch cfg.Provider {
	case config.ProviderProcedural:
		return NewProcedural(cfg.Seed), func() {}, nil
	case config.ProviderDirectory:
		d, err := NewDirectory(cfg.ChunkDir)
		if err != nil {
			return nil, func() {}, err
		}
		return d, func() {}, nil
	case config.ProviderRemote:
		r, err := DialRemote(ctx, cfg.RemoteURL)
		if err != nil {
			return nil, func() {}, err
		}
		return r, r.Close, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown chunk provider %q", cfg.Provider)
	}
}

func inGrid(cx, cy int) bool {
	return cx >= 0 && cy >= 0 && cx < formats.ChunkGridSize && cy < formats.ChunkGridSize
}
