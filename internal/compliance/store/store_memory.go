// Package store provides the transactional boundary around compliance state.
//
// Every mutation runs on a private clone of the committed state under a single
// process-wide lock. The clone replaces the committed state only when the
// callback and the optional snapshot persister both succeed, so a failed
// operation leaves no trace. The lock also gives a total order over mutations.
//
// With an AuditStage attached, audit rows emitted by the callback are written
// after the snapshot save, so a failed save leaves no audit trail. A staged
// write failure aborts the commit; when a persister already saved the snapshot
// it stays ahead of memory until the next update overwrites it.
package store

import (
	"context"
	"encoding/json"
	"sync"

	"secutoken/internal/compliance/state"
	dErrors "secutoken/pkg/domain-errors"
)

// Persister durably stores a committed snapshot. Save runs while the store
// lock is held; a Save error aborts the commit.
type Persister interface {
	Save(ctx context.Context, snapshot []byte) error
}

// Option configures a Memory store.
type Option func(*Memory)

// WithPersister snapshots state after every successful update.
func WithPersister(p Persister) Option {
	return func(m *Memory) {
		m.persister = p
	}
}

// Memory is the in-process state store.
type Memory struct {
	mu        sync.RWMutex
	st        *state.State
	persister Persister
	stage     *AuditStage
}

// NewMemory wraps an initial state.
func NewMemory(initial *state.State, opts ...Option) *Memory {
	initial.EnsureMaps()
	m := &Memory{st: initial}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Update runs fn against a clone and commits it on success. Cancellation is
// only observed before the operation starts; once running it completes.
func (m *Memory) Update(ctx context.Context, fn func(*state.State) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation cancelled before start")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stage != nil {
		m.stage.begin(ctx)
		defer m.stage.discard()
	}
	work := m.st.Clone()
	if err := fn(work); err != nil {
		return err
	}
	if m.persister != nil {
		data, err := json.Marshal(work)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "encode state snapshot")
		}
		if err := m.persister.Save(context.WithoutCancel(ctx), data); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "persist state snapshot")
		}
	}
	if m.stage != nil {
		if err := m.stage.flush(context.WithoutCancel(ctx)); err != nil {
			return err
		}
	}
	m.st = work
	return nil
}

// View runs fn against the committed state. fn must not mutate it.
func (m *Memory) View(ctx context.Context, fn func(*state.State) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation cancelled before start")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.st)
}

// Simulate runs fn against a throwaway clone. Used by advisory checks that
// need the same reconciliation steps as a mutation without committing them.
func (m *Memory) Simulate(ctx context.Context, fn func(*state.State) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation cancelled before start")
	}
	m.mu.RLock()
	work := m.st.Clone()
	m.mu.RUnlock()
	return fn(work)
}

// Restore decodes a snapshot into a fresh state.
func Restore(snapshot []byte) (*state.State, error) {
	st := &state.State{}
	if err := json.Unmarshal(snapshot, st); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode state snapshot")
	}
	st.EnsureMaps()
	return st, nil
}
