// Package cache stores compiled artifacts in SQLite, keyed by source and
// compile options.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/smooshjs/smoosh-go/internal/artifact"
	"github.com/smooshjs/smoosh-go/pkg/smoosh"
)

// ErrMiss is returned by Get when no artifact is stored under the key.
var ErrMiss = errors.New("cache miss")

// Cache is safe for concurrent use.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the cache database at path. The parent directory is
// created if needed.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS artifacts (
		key        TEXT PRIMARY KEY,
		data       BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	return &Cache{db: db, now: time.Now}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key derives the cache key for source compiled with opts by the frontend
// named frontendID (for example the plugin list). Any change to the inputs
// or to the Outcome layout yields a new key.
func Key(source []byte, opts smoosh.CompileOptions, frontendID string) string {
	h := sha256.New()
	fmt.Fprintf(h, "smoosh/%d\x00%s\x00%t\x00%d\x00%d\x00%s\x00",
		smoosh.OutcomeLayoutVersion, opts.Goal, opts.NoScriptRval, opts.Lineno, opts.Column, frontendID)
	h.Write(source)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the artifact stored under key, or ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) (*artifact.Artifact, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx, "SELECT data FROM artifacts WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("querying artifact: %w", err)
	}
	a, err := artifact.Unmarshal(data)
	if err != nil {
		// Written by an incompatible version; treat as absent.
		if errors.Is(err, artifact.ErrBadArtifact) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return a, nil
}

// Put stores a under key, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key string, a *artifact.Artifact) error {
	data, err := artifact.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO artifacts (key, data, created_at) VALUES (?, ?, ?)",
		key, data, c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving artifact: %w", err)
	}
	return nil
}

// Len returns the number of stored artifacts.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM artifacts").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting artifacts: %w", err)
	}
	return n, nil
}

// Prune deletes entries stored before cutoff and returns how many were
// removed.
func (c *Cache) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM artifacts WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning artifacts: %w", err)
	}
	return res.RowsAffected()
}
