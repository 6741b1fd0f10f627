// Package sqlite snapshots compliance state into a local SQLite file. Intended
// for single-node deployments and the offline CLI.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/state"
	"secutoken/internal/compliance/store"
)

const bucket = "compliance"

// Persister writes snapshots into the state table.
type Persister struct {
	db *sql.DB
}

// Save upserts the snapshot bucket.
func (p *Persister) Save(ctx context.Context, snapshot []byte) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
		bucket, snapshot)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", bucket, err)
	}
	return nil
}

// Open creates the database file if needed, hydrates state and returns a
// snapshotting store plus the underlying handle for the caller to close.
// opts are applied after the snapshot persister.
func Open(ctx context.Context, path string, cfg models.Config, opts ...store.Option) (*store.Memory, *sql.DB, error) {
	if path == "" {
		path = "secutoken.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create state table: %w", err)
	}
	st, err := load(ctx, db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	opts = append([]store.Option{store.WithPersister(&Persister{db: db})}, opts...)
	return store.NewMemory(st, opts...), db, nil
}

func load(ctx context.Context, db *sql.DB, cfg models.Config) (*state.State, error) {
	var payload []byte
	err := db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = ?`, bucket).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return state.New(cfg), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	return store.Restore(payload)
}
