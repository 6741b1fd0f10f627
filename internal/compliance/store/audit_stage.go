package store

import (
	"context"
	"sync"
	"sync/atomic"

	dErrors "secutoken/pkg/domain-errors"
	audit "secutoken/pkg/platform/audit"
)

// AuditStage holds the audit rows a Memory update appends and releases them to
// the wrapped store once the snapshot is saved. Rows appended with any context
// other than the running update's go straight through.
type AuditStage struct {
	audit.Store
	active atomic.Pointer[stagedBatch]
}

type stagedBatch struct {
	ctx    context.Context
	mu     sync.Mutex
	events []audit.Event
}

// NewAuditStage wraps the store compliance events are finally written to.
func NewAuditStage(s audit.Store) *AuditStage {
	return &AuditStage{Store: s}
}

// WithAuditStage buffers audit rows of each update until its snapshot is saved.
func WithAuditStage(a *AuditStage) Option {
	return func(m *Memory) {
		m.stage = a
	}
}

func (a *AuditStage) Append(ctx context.Context, event audit.Event) error {
	if b := a.active.Load(); b != nil && b.ctx == ctx {
		b.mu.Lock()
		b.events = append(b.events, event)
		b.mu.Unlock()
		return nil
	}
	return a.Store.Append(ctx, event)
}

func (a *AuditStage) begin(ctx context.Context) {
	a.active.Store(&stagedBatch{ctx: ctx})
}

func (a *AuditStage) discard() {
	a.active.Store(nil)
}

// flush writes the batch in emission order. It stops at the first failure.
func (a *AuditStage) flush(ctx context.Context) error {
	b := a.active.Swap(nil)
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if err := a.Store.Append(ctx, e); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "write staged audit events")
		}
	}
	return nil
}
