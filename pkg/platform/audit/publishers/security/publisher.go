// Package security buffers role changes and denied privileged calls and
// flushes them to the audit store in the background. Emit never blocks on
// the store; bursts beyond the buffer capacity lose the oldest events.
package security

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "secutoken/pkg/platform/audit"
)

type Publisher struct {
	store     audit.Store
	buffer    *RingBuffer
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
}

type Option func(*Publisher)

func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.interval = d
		}
	}
}

func New(store audit.Store, capacity int, opts ...Option) *Publisher {
	p := &Publisher{
		store:     store,
		buffer:    NewRingBuffer(capacity),
		batchSize: 100,
		interval:  time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Emit(_ context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Category = audit.CategorySecurity
	p.buffer.Enqueue(event)
	return nil
}

// Flush writes buffered events until the buffer is empty or a write fails.
func (p *Publisher) Flush(ctx context.Context) error {
	for {
		batch := p.buffer.DequeueBatch(p.batchSize)
		if len(batch) == 0 {
			return nil
		}
		for i, event := range batch {
			if err := p.store.Append(ctx, event); err != nil {
				p.buffer.Requeue(batch[i:])
				return err
			}
		}
	}
}

// Run flushes on every interval until ctx is cancelled, then flushes once more.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := p.Flush(context.WithoutCancel(ctx)); err != nil {
				p.logger.Error("final security audit flush failed", "error", err, "pending", p.buffer.Len())
			}
			return nil
		case <-ticker.C:
			if err := p.Flush(ctx); err != nil {
				p.logger.Warn("security audit flush failed", "error", err, "pending", p.buffer.Len())
			}
		}
	}
}
