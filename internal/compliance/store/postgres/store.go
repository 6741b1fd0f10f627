// Package postgres snapshots compliance state into PostgreSQL.
//
// The in-memory store remains the transactional engine; this package loads the
// last snapshot on startup and writes a new one inside every commit.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // register the postgres driver

	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/state"
	"secutoken/internal/compliance/store"
	txcontext "secutoken/pkg/platform/tx"
)

const snapshotKey = "compliance"

// Persister writes snapshots to the compliance_state table.
type Persister struct {
	db *sql.DB
}

// NewPersister returns a persister bound to db.
func NewPersister(db *sql.DB) *Persister {
	return &Persister{db: db}
}

// Save upserts the snapshot row.
func (p *Persister) Save(ctx context.Context, snapshot []byte) error {
	query := `
		INSERT INTO compliance_state (key, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := txcontext.ExecerFor(ctx, p.db).ExecContext(ctx, query, snapshotKey, snapshot); err != nil {
		return fmt.Errorf("upsert compliance snapshot: %w", err)
	}
	return nil
}

// EnsureSchema creates the snapshot table if missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS compliance_state (
		key TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure compliance_state table: %w", err)
	}
	return nil
}

// Load returns the last snapshot, or a fresh state built from cfg when none exists.
func Load(ctx context.Context, db *sql.DB, cfg models.Config) (*state.State, error) {
	var payload []byte
	err := db.QueryRowContext(ctx, `SELECT payload FROM compliance_state WHERE key = $1`, snapshotKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return state.New(cfg), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select compliance snapshot: %w", err)
	}
	return store.Restore(payload)
}

// Open prepares the schema, hydrates state and returns a snapshotting store.
func Open(ctx context.Context, db *sql.DB, cfg models.Config) (*store.Memory, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	st, err := Load(ctx, db, cfg)
	if err != nil {
		return nil, err
	}
	return store.NewMemory(st, store.WithPersister(NewPersister(db))), nil
}
