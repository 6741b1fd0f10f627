package main

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"secutoken/internal/compliance/state"
	"secutoken/internal/compliance/store"
	pgstore "secutoken/internal/compliance/store/postgres"
	dErrors "secutoken/pkg/domain-errors"
	audit "secutoken/pkg/platform/audit"
	txcontext "secutoken/pkg/platform/tx"
)

const defaultComplianceTxTimeout = 5 * time.Second

// activeTx is the SQL transaction of the running Update and the context the
// Update was called with.
type activeTx struct {
	ctx context.Context
	tx  *sql.Tx
}

// compliancePostgresTx runs each state mutation inside one SQL transaction.
// The snapshot upsert and every compliance audit row written during the
// mutation share it, and the commit happens as the last step of the snapshot
// save so the in-memory state only advances when the database did.
type compliancePostgresTx struct {
	db        *sql.DB
	timeout   time.Duration
	persister *pgstore.Persister
	inner     *store.Memory

	mu     sync.Mutex
	active atomic.Pointer[activeTx]
}

func newCompliancePostgresTx(db *sql.DB, initial *state.State) *compliancePostgresTx {
	t := &compliancePostgresTx{db: db, persister: pgstore.NewPersister(db)}
	t.inner = store.NewMemory(initial, store.WithPersister(t))
	return t
}

func (t *compliancePostgresTx) Update(ctx context.Context, fn func(*state.State) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultComplianceTxTimeout
	}
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	tx, err := t.db.BeginTx(txCtx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin compliance transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	t.active.Store(&activeTx{ctx: ctx, tx: tx})
	defer t.active.Store(nil)

	return t.inner.Update(ctx, fn)
}

func (t *compliancePostgresTx) View(ctx context.Context, fn func(*state.State) error) error {
	return t.inner.View(ctx, fn)
}

func (t *compliancePostgresTx) Simulate(ctx context.Context, fn func(*state.State) error) error {
	return t.inner.Simulate(ctx, fn)
}

// Save implements store.Persister: upsert, then commit.
func (t *compliancePostgresTx) Save(ctx context.Context, snapshot []byte) error {
	a := t.active.Load()
	if a == nil {
		return errors.New("snapshot save outside a compliance transaction")
	}
	if err := t.persister.Save(txcontext.WithTx(ctx, a.tx), snapshot); err != nil {
		return err
	}
	return a.tx.Commit()
}

// bind returns ctx carrying the running transaction when ctx belongs to it.
func (t *compliancePostgresTx) bind(ctx context.Context) context.Context {
	if a := t.active.Load(); a != nil && a.ctx == ctx {
		return txcontext.WithTx(ctx, a.tx)
	}
	return ctx
}

// txAuditStore writes compliance events into the transaction of the mutation
// that emitted them. Events from outside a mutation go straight to the outbox.
type txAuditStore struct {
	audit.Store
	tx *compliancePostgresTx
}

func (s *txAuditStore) Append(ctx context.Context, event audit.Event) error {
	return s.Store.Append(s.tx.bind(ctx), event)
}
