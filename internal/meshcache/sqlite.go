package meshcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Faultbox/imperium/internal/engine/terrain"
	"github.com/Faultbox/imperium/internal/logger"
)

// SQLite is a persistent cache storing zstd-compressed meshes in one table.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
}

// OpenSQLite opens or creates a cache database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("empty cache path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening mesh cache %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing mesh cache %s: %w", path, err)
	}

	return &SQLite{db: db, log: logger.Named("meshcache")}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS meshes (
			key TEXT PRIMARY KEY,
			vertices INTEGER NOT NULL,
			indices INTEGER NOT NULL,
			blob BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the stored mesh for key. A row that fails to decode is
// deleted and reported as a miss.
func (c *SQLite) Get(ctx context.Context, key string) (*terrain.MeshData, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx, `SELECT blob FROM meshes WHERE key=?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	mesh, err := decodeMesh(blob)
	if err != nil {
		c.log.Debug("discarding corrupt cache entry", zap.String("key", key), zap.Error(err))
		if _, derr := c.db.ExecContext(ctx, `DELETE FROM meshes WHERE key=?`, key); derr != nil {
			c.log.Debug("deleting corrupt cache entry failed", zap.String("key", key), zap.Error(derr))
		}
		return nil, nil
	}
	return mesh, nil
}

// Put stores or replaces the mesh for key.
func (c *SQLite) Put(ctx context.Context, key string, mesh *terrain.MeshData) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO meshes(key, vertices, indices, blob, created_at) VALUES(?,?,?,?,?)
		 ON CONFLICT(key) DO UPDATE SET vertices=excluded.vertices, indices=excluded.indices,
		 blob=excluded.blob, created_at=excluded.created_at`,
		key, mesh.VertexCount(), len(mesh.Indices), encodeMesh(mesh), time.Now().Unix())
	return err
}

// Len returns the number of stored meshes.
func (c *SQLite) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM meshes`).Scan(&n)
	return n, err
}

// Close closes the database.
func (c *SQLite) Close() error {
	return c.db.Close()
}
