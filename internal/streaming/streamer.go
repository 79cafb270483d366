// Package streaming decides which chunks are loaded around a moving camera.
//
// A Streamer is driven by one goroutine calling Update once per frame.
// Update never waits for mesh work: cache lookups and mesh generation run
// on background goroutines and their results are applied by a later
// Update (or Settle) on the driving goroutine. All streamer state is owned
// by that goroutine.
package streaming

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/imperium/internal/config"
	"github.com/Faultbox/imperium/internal/engine/terrain"
	"github.com/Faultbox/imperium/internal/logger"
	"github.com/Faultbox/imperium/internal/meshcache"
	"github.com/Faultbox/imperium/internal/provider"
	"github.com/Faultbox/imperium/internal/world"
	"github.com/Faultbox/imperium/pkg/formats"
)

// ErrInvalidOptions is returned by New for inconsistent options.
var ErrInvalidOptions = errors.New("invalid streaming options")

// Options configures a Streamer. Distances are Chebyshev chunk distances.
type Options struct {
	LoadRadius    int
	UnloadRadius  int // At least LoadRadius
	LoadBudget    int // Load attempts started per Update
	LODDistances  [3]int
	BatchCapacity int // Chunks per LOD batch, 0 sizes for the unload square
}

// DefaultOptions returns the standard streaming settings.
func DefaultOptions() Options {
	return Options{
		LoadRadius:   8,
		UnloadRadius: 12,
		LoadBudget:   2,
		LODDistances: DefaultLODDistances,
	}
}

// OptionsFromConfig converts the streaming config section.
func OptionsFromConfig(cfg config.StreamingConfig) Options {
	return Options{
		LoadRadius:   cfg.LoadRadius,
		UnloadRadius: cfg.UnloadRadius,
		LoadBudget:   cfg.LoadBudget,
		LODDistances: cfg.LODDistances,
	}
}

func (o *Options) validate() error {
	switch {
	case o.LoadRadius < 0:
		return errors.Join(ErrInvalidOptions, errors.New("negative load radius"))
	case o.UnloadRadius < o.LoadRadius:
		return errors.Join(ErrInvalidOptions, errors.New("unload radius below load radius"))
	case o.LoadBudget < 1:
		return errors.Join(ErrInvalidOptions, errors.New("load budget below 1"))
	case o.BatchCapacity < 0:
		return errors.Join(ErrInvalidOptions, errors.New("negative batch capacity"))
	}
	return nil
}

// MeshGenerator produces chunk meshes. *meshworker.Pool implements it.
type MeshGenerator interface {
	Generate(ctx context.Context, chunk *formats.ChunkData, lod int) (*terrain.MeshData, error)
}

// SceneNode is the root node the streamer's batches hang from.
type SceneNode interface {
	Detach()
}

// Callbacks notify collaborators of chunk lifecycle changes. Both run on
// the goroutine calling Update or Settle. Nil callbacks are skipped.
type Callbacks struct {
	OnChunkMeshReady func(cx, cy, lod, geometry, instance int)
	OnChunkUnloaded  func(cx, cy int)
}

// Stats is a snapshot of streamer counters.
type Stats struct {
	Loaded      int
	Pending     int
	CacheHits   uint64
	CacheMisses uint64
	Generated   uint64
	Failures    uint64
	Unavailable uint64 // Provider returned no data
	Unloads     uint64
	BatchUsed   [terrain.MaxLOD + 1]int
}

type loadedChunk struct {
	lod      int
	geometry int
	instance int
}

type loadResult struct {
	coord  world.ChunkCoord
	lod    int
	mesh   *terrain.MeshData
	cached bool
	err    error
}

// Streamer loads and unloads chunk meshes around the camera.
type Streamer struct {
	opts      Options
	provider  provider.Provider
	cache     meshcache.Cache
	mesher    MeshGenerator
	scene     SceneNode
	callbacks Callbacks
	log       *zap.Logger

	batches [terrain.MaxLOD + 1]*Batch
	loaded  map[world.ChunkCoord]loadedChunk
	pending map[world.ChunkCoord]struct{}
	results chan loadResult

	// Candidate order around the last camera chunk
	center world.ChunkCoord
	spiral []world.ChunkCoord

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	disposed bool
	stats    Stats
}

// New creates a streamer. A nil cache disables caching and a nil scene is
// allowed.
func New(opts Options, p provider.Provider, cache meshcache.Cache, mesher MeshGenerator, scene SceneNode, callbacks Callbacks) (*Streamer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if p == nil || mesher == nil {
		return nil, errors.Join(ErrInvalidOptions, errors.New("provider and mesh generator are required"))
	}
	if cache == nil {
		cache = meshcache.Nop{}
	}
	if opts.BatchCapacity == 0 {
		side := 2*opts.UnloadRadius + 1
		opts.BatchCapacity = side * side
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Streamer{
		opts:      opts,
		provider:  p,
		cache:     cache,
		mesher:    mesher,
		scene:     scene,
		callbacks: callbacks,
		log:       logger.Named("streaming"),
		loaded:    make(map[world.ChunkCoord]loadedChunk),
		pending:   make(map[world.ChunkCoord]struct{}),
		results:   make(chan loadResult, opts.LoadBudget*4),
		center:    world.ChunkCoord{X: -1, Y: -1},
		ctx:       ctx,
		cancel:    cancel,
	}
	for lod := range s.batches {
		s.batches[lod] = NewBatch(lod, opts.BatchCapacity)
	}
	return s, nil
}

// Update runs one streaming pass for a camera at world position (x, z):
// it applies up to LoadBudget finished loads, makes up to LoadBudget load
// attempts nearest the camera first, and unloads chunks beyond the unload
// radius. Every attempt asks the provider once, including attempts that
// find no data.
func (s *Streamer) Update(cameraX, cameraZ float64) {
	if s.disposed {
		return
	}

	s.drain(s.opts.LoadBudget)

	center := world.ChunkFromWorld(cameraX, cameraZ)
	if center != s.center || s.spiral == nil {
		s.center = center
		s.spiral = world.Spiral(center, s.opts.LoadRadius)
	}

	attempts := 0
	for _, c := range s.spiral {
		if attempts == s.opts.LoadBudget {
			break
		}
		if _, ok := s.loaded[c]; ok {
			continue
		}
		if _, ok := s.pending[c]; ok {
			continue
		}
		attempts++
		s.start(c, world.Chebyshev(c, center))
	}

	s.unloadBeyond(center)
}

// Settle waits for every in-flight load and applies it. It must be called
// from the goroutine that calls Update.
func (s *Streamer) Settle(ctx context.Context) error {
	for len(s.pending) > 0 && !s.disposed {
		select {
		case r := <-s.results:
			s.apply(r)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// LoadedCount returns the number of chunks with committed geometry.
func (s *Streamer) LoadedCount() int { return len(s.loaded) }

// PendingCount returns the number of loads in flight.
func (s *Streamer) PendingCount() int { return len(s.pending) }

// IsLoaded reports whether a chunk is loaded and at which LOD.
func (s *Streamer) IsLoaded(cx, cy int) (lod int, ok bool) {
	rec, ok := s.loaded[world.ChunkCoord{X: cx, Y: cy}]
	return rec.lod, ok
}

// Batch returns the batch of one LOD.
func (s *Streamer) Batch(lod int) *Batch {
	if lod < terrain.MinLOD || lod > terrain.MaxLOD {
		return nil
	}
	return s.batches[lod]
}

// Stats returns a snapshot of the streamer counters.
func (s *Streamer) Stats() Stats {
	st := s.stats
	st.Loaded = len(s.loaded)
	st.Pending = len(s.pending)
	for lod, b := range s.batches {
		st.BatchUsed[lod] = b.Used()
	}
	return st
}

// Dispose drops all loaded and pending chunks, releases the batches and
// detaches the scene node. In-flight loads are abandoned. Dispose is safe
// to call more than once.
func (s *Streamer) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true

	s.cancel()
	s.wg.Wait()

	clear(s.loaded)
	clear(s.pending)
	for _, b := range s.batches {
		b.Dispose()
	}
	if s.scene != nil {
		s.scene.Detach()
	}
	s.log.Debug("streamer disposed")
}

// start makes one load attempt. The provider is asked on the calling
// goroutine; a chunk without data is skipped until the next Update. The
// cache and the mesher run in the background.
func (s *Streamer) start(c world.ChunkCoord, distance int) {
	chunk := s.provider.Chunk(c.X, c.Y)
	if chunk == nil {
		s.stats.Unavailable++
		return
	}

	lod := LODForDistance(distance, s.opts.LODDistances)
	s.pending[c] = struct{}{}
	s.wg.Add(1)
	go s.load(c, chunk, lod)
}

func (s *Streamer) load(c world.ChunkCoord, chunk *formats.ChunkData, lod int) {
	defer s.wg.Done()

	res := loadResult{coord: c, lod: lod}
	key := meshcache.Hash(chunk, lod)

	mesh, err := s.cache.Get(s.ctx, key)
	if err != nil {
		s.log.Debug("mesh cache read failed", logger.Chunk(c.X, c.Y), logger.LOD(lod), zap.Error(err))
		mesh = nil
	}

	if mesh != nil {
		res.mesh, res.cached = mesh, true
	} else {
		res.mesh, res.err = s.mesher.Generate(s.ctx, chunk, lod)
		if res.err == nil {
			if err := s.cache.Put(s.ctx, key, res.mesh); err != nil {
				s.log.Debug("mesh cache write failed", logger.Chunk(c.X, c.Y), logger.LOD(lod), zap.Error(err))
			}
		}
	}

	select {
	case s.results <- res:
	case <-s.ctx.Done():
	}
}

// drain applies up to limit finished loads without blocking. The rest
// stay queued for the next Update.
func (s *Streamer) drain(limit int) {
	for i := 0; i < limit; i++ {
		select {
		case r := <-s.results:
			s.apply(r)
		default:
			return
		}
	}
}

// apply commits one finished load. Failures leave no trace besides the
// cleared pending entry.
func (s *Streamer) apply(r loadResult) {
	delete(s.pending, r.coord)

	if r.err != nil {
		s.stats.Failures++
		s.log.Warn("chunk mesh generation failed",
			logger.Chunk(r.coord.X, r.coord.Y), logger.LOD(r.lod), zap.Error(r.err))
		return
	}
	if r.cached {
		s.stats.CacheHits++
	} else {
		s.stats.CacheMisses++
		s.stats.Generated++
	}

	batch := s.batches[r.lod]
	geometry, err := batch.AddGeometry(r.mesh)
	if err != nil {
		s.stats.Failures++
		s.log.Warn("no batch slot for chunk", logger.Chunk(r.coord.X, r.coord.Y), logger.LOD(r.lod), zap.Error(err))
		return
	}
	inst, err := batch.AddInstance(geometry, r.coord)
	if err != nil {
		_ = batch.RemoveGeometry(geometry)
		s.stats.Failures++
		s.log.Warn("no batch instance for chunk", logger.Chunk(r.coord.X, r.coord.Y), logger.LOD(r.lod), zap.Error(err))
		return
	}

	s.loaded[r.coord] = loadedChunk{lod: r.lod, geometry: geometry, instance: inst}
	s.log.Debug("chunk loaded", logger.Chunk(r.coord.X, r.coord.Y), logger.LOD(r.lod),
		zap.Int("vertices", r.mesh.VertexCount()), zap.Bool("cached", r.cached))

	if s.callbacks.OnChunkMeshReady != nil {
		s.callbacks.OnChunkMeshReady(r.coord.X, r.coord.Y, r.lod, geometry, inst)
	}
}

// unloadBeyond unloads every chunk further than the unload radius.
func (s *Streamer) unloadBeyond(center world.ChunkCoord) {
	for c, rec := range s.loaded {
		if world.Chebyshev(c, center) <= s.opts.UnloadRadius {
			continue
		}

		batch := s.batches[rec.lod]
		if err := batch.RemoveInstance(rec.instance); err != nil {
			s.log.Error("releasing chunk instance", logger.Chunk(c.X, c.Y), zap.Error(err))
		}
		if err := batch.RemoveGeometry(rec.geometry); err != nil {
			s.log.Error("releasing chunk geometry", logger.Chunk(c.X, c.Y), zap.Error(err))
		}
		delete(s.loaded, c)
		s.stats.Unloads++
		s.log.Debug("chunk unloaded", logger.Chunk(c.X, c.Y))

		if s.callbacks.OnChunkUnloaded != nil {
			s.callbacks.OnChunkUnloaded(c.X, c.Y)
		}
	}
}
