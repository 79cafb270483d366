// chunkgen writes binary chunk records and a manifest for the streamer's
// directory provider.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/imperium/internal/logger"
)

func main() {
	dir := flag.String("out", "chunks", "Output directory")
	extent := flag.Int("extent", 0, "Chunks per edge to write (0 = whole world)")
	lods := flag.Int("lods", 0, "LOD levels to write (0 = all)")
	procedural := flag.Bool("procedural", false, "Use the opensimplex world instead of the placeholder noise")
	seed := flag.Int64("seed", 1, "Seed for -procedural")
	level := flag.String("log-level", "info", "Log level")
	flag.Usage = printUsage
	flag.Parse()

	if err := logger.Init(*level, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	opts := Options{Dir: *dir, Extent: *extent, LODLevels: *lods}
	if *procedural {
		opts.Source = proceduralSource(*seed)
	}

	start := time.Now()
	m, err := Generate(opts)
	if err != nil {
		logger.Error("chunk generation failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("chunks written",
		zap.String("dir", *dir),
		zap.Int("files", m.TotalChunks),
		zap.Int("lod_levels", m.LODLevels),
		zap.Bool("procedural", *procedural),
		zap.Duration("took", time.Since(start)))
	fmt.Printf("chunks: wrote %d files into %s\n", m.TotalChunks, *dir)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `chunkgen - write chunk_LL_XX_YY.bin records and manifest.json

Usage:
  chunkgen [options]

Options:`)
	flag.PrintDefaults()
}
