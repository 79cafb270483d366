// streamsim drives the chunk streamer headlessly along a camera flight and
// reports loading statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/imperium/internal/config"
	"github.com/Faultbox/imperium/internal/engine/meshworker"
	"github.com/Faultbox/imperium/internal/engine/terrain"
	"github.com/Faultbox/imperium/internal/logger"
	"github.com/Faultbox/imperium/internal/meshcache"
	"github.com/Faultbox/imperium/internal/provider"
	"github.com/Faultbox/imperium/internal/streaming"
	"github.com/Faultbox/imperium/internal/world"
	"github.com/Faultbox/imperium/pkg/formats"
)

var (
	frames   = flag.Int("frames", 3600, "Frames to simulate")
	fps      = flag.Int("fps", 60, "Simulated frames per second")
	path     = flag.String("path", PathOrbit, "Camera flight: orbit or sweep")
	speed    = flag.Float64("speed", 96, "Camera speed in tiles per second")
	realtime = flag.Bool("realtime", false, "Sleep between frames")
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := run(ctx, cfg)
	if err != nil {
		logger.Error("simulation failed", zap.Error(err))
		os.Exit(1)
	}
	printSummary(st)
}

// rootNode stands in for the scene graph root the batches attach to.
type rootNode struct{ log *zap.Logger }

func (n rootNode) Detach() { n.log.Debug("terrain root detached") }

func run(ctx context.Context, cfg *config.Config) (streaming.Stats, error) {
	log := logger.Named("streamsim")

	fl, err := newFlight(*path, float32(*speed))
	if err != nil {
		return streaming.Stats{}, err
	}
	if *fps <= 0 {
		return streaming.Stats{}, fmt.Errorf("fps must be positive, got %d", *fps)
	}

	source, closeSource, err := provider.Open(ctx, cfg.Data)
	if err != nil {
		return streaming.Stats{}, fmt.Errorf("opening provider: %w", err)
	}
	defer closeSource()

	cache, err := meshcache.Open(cfg.Cache)
	if err != nil {
		return streaming.Stats{}, fmt.Errorf("opening mesh cache: %w", err)
	}
	defer cache.Close()

	pool := meshworker.NewPool(meshworker.Options{
		Workers: cfg.Streaming.Workers,
		Timeout: cfg.Streaming.MeshTimeout,
		Mesher: terrain.Options{
			WorldTiles:    world.WorldTiles,
			EdgeFadeTiles: cfg.Mesher.EdgeFadeTiles,
		},
	})
	defer pool.Close()

	var ready, unloaded int
	s, err := streaming.New(streaming.OptionsFromConfig(cfg.Streaming), source, cache, pool, rootNode{log: log},
		streaming.Callbacks{
			OnChunkMeshReady: func(cx, cy, lod, geometry, instance int) { ready++ },
			OnChunkUnloaded:  func(cx, cy int) { unloaded++ },
		})
	if err != nil {
		return streaming.Stats{}, err
	}
	defer s.Dispose()

	log.Info("simulation started",
		zap.String("path", *path),
		zap.Int("frames", *frames),
		zap.Int("workers", pool.Workers()),
		zap.String("provider", cfg.Data.Provider),
		zap.String("cache", cfg.Cache.Kind))

	dt := 1 / float32(*fps)
	frameTime := time.Second / time.Duration(*fps)
	start := time.Now()

	for frame := 0; frame < *frames; frame++ {
		if ctx.Err() != nil {
			log.Info("interrupted", zap.Int("frame", frame))
			break
		}

		pos := fl.at(float32(frame) * dt)
		s.Update(float64(pos[0]), float64(pos[1]))

		if frame%*fps == 0 {
			st := s.Stats()
			c := world.ChunkFromWorld(float64(pos[0]), float64(pos[1]))
			log.Debug("frame",
				zap.Int("frame", frame),
				logger.Chunk(c.X, c.Y),
				zap.String("province", provinceUnder(source, pos[0], pos[1])),
				zap.Int("loaded", st.Loaded),
				zap.Int("pending", st.Pending),
				zap.Uint64("cache_hits", st.CacheHits))
		}
		if *realtime {
			time.Sleep(frameTime)
		}
	}

	settleCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.Settle(settleCtx); err != nil {
		log.Warn("pending loads did not settle", zap.Error(err))
	}

	st := s.Stats()
	ps := pool.Stats()
	log.Info("simulation finished",
		zap.Duration("took", time.Since(start)),
		zap.Int("ready", ready),
		zap.Int("unloaded", unloaded),
		zap.Uint64("dispatched", ps.Dispatched),
		zap.Uint64("timed_out", ps.TimedOut),
		zap.Uint64("bytes_transferred", ps.BytesTransferred))
	return st, nil
}

// provinceUnder names the province of the tile below the camera.
func provinceUnder(source provider.Provider, x, z float32) string {
	c := world.ChunkFromWorld(float64(x), float64(z))
	chunk := source.Chunk(c.X, c.Y)
	if chunk == nil {
		return "Unknown"
	}
	lx := min(max(int(x)-c.X*world.ChunkSize, 0), world.ChunkSize-1)
	ly := min(max(int(z)-c.Y*world.ChunkSize, 0), world.ChunkSize-1)
	return world.ProvinceName(int(chunk.Provinces[formats.TileIndex(lx, ly)]))
}

func printSummary(st streaming.Stats) {
	fmt.Printf("Loaded:      %d\n", st.Loaded)
	fmt.Printf("Pending:     %d\n", st.Pending)
	fmt.Printf("Cache hits:  %d\n", st.CacheHits)
	fmt.Printf("Generated:   %d\n", st.Generated)
	fmt.Printf("Failures:    %d\n", st.Failures)
	fmt.Printf("Unavailable: %d\n", st.Unavailable)
	fmt.Printf("Unloads:     %d\n", st.Unloads)
	for lod, used := range st.BatchUsed {
		fmt.Printf("  LOD %d slots: %d\n", lod, used)
	}
}
