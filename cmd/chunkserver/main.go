// chunkserver serves chunk records over websocket to remote providers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/imperium/internal/config"
	"github.com/Faultbox/imperium/internal/logger"
	"github.com/Faultbox/imperium/internal/network"
	"github.com/Faultbox/imperium/internal/provider"
)

// ChunkPath is the websocket endpoint remote providers dial.
const ChunkPath = "/chunks"

const statsInterval = 30 * time.Second

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

	if err := run(ctx, cfg); err != nil {
		logger.Error("chunk server failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("chunk server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.Data.Provider == config.ProviderRemote {
		return errors.New("chunk server needs a local provider (procedural or directory)")
	}

	source, closeSource, err := provider.Open(ctx, cfg.Data)
	if err != nil {
		return fmt.Errorf("opening provider: %w", err)
	}
	defer closeSource()

	chunks := network.NewServer(source)
	mux := http.NewServeMux()
	mux.Handle(ChunkPath, chunks.Handler())

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	log := logger.Named("chunkserver")
	log.Info("serving chunks",
		zap.String("addr", cfg.Server.Listen),
		zap.String("path", ChunkPath),
		zap.String("provider", cfg.Data.Provider))

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-errc:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ticker.C:
			served, missing := chunks.Served()
			log.Info("chunk requests", zap.Uint64("served", served), zap.Uint64("missing", missing))
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}
