package provider

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/imperium/internal/logger"
	"github.com/Faultbox/imperium/pkg/formats"
)

// Directory reads LOD 0 chunk records written by chunkgen.
type Directory struct {
	root string
	log  *zap.Logger
}

// NewDirectory creates a provider over a chunk directory.
func NewDirectory(root string) (*Directory, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening chunk directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("chunk directory %s is not a directory", root)
	}
	return &Directory{root: root, log: logger.Named("provider")}, nil
}

// Chunk reads one record. Missing files have no data. Unreadable,
// malformed or misplaced records are logged and also have no data.
func (d *Directory) Chunk(cx, cy int) *formats.ChunkData {
	if !inGrid(cx, cy) {
		return nil
	}

	path := filepath.Join(d.root, formats.ChunkFileName(0, cx, cy))
	chunk, err := formats.ParseChunkFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		d.log.Warn("unreadable chunk record", logger.Chunk(cx, cy), zap.String("path", path), zap.Error(err))
		return nil
	}
	if chunk.X != cx || chunk.Y != cy {
		d.log.Warn("chunk record header does not match its file name",
			logger.Chunk(cx, cy), zap.Int("header_x", chunk.X), zap.Int("header_y", chunk.Y))
		return nil
	}
	if problems := formats.ValidateChunk(chunk); len(problems) > 0 {
		d.log.Warn("invalid chunk record", logger.Chunk(cx, cy), zap.Strings("problems", problems))
		return nil
	}
	return chunk
}
