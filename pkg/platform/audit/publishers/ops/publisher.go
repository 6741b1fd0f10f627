// Package ops provides a best-effort audit publisher for operational events
// such as advisory transfer checks. Events may be sampled or dropped; Emit
// never fails the caller.
package ops

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "secutoken/pkg/platform/audit"
)

type Publisher struct {
	store   audit.Store
	sampler *Sampler
	breaker *CircuitBreaker
	metrics *Metrics
	logger  *slog.Logger
}

type Option func(*Publisher)

func WithSampler(s *Sampler) Option {
	return func(p *Publisher) { p.sampler = s }
}

func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(p *Publisher) { p.breaker = cb }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:   store,
		sampler: NewSampler(1),
		breaker: NewCircuitBreaker(5, time.Minute),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit persists the event when sampling and the breaker allow it. Always nil.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if !p.sampler.Keep(event.Action) {
		p.metrics.IncSampled()
		return nil
	}
	if !p.breaker.Allow() {
		p.metrics.IncCircuitBreakerDropped()
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Category = audit.CategoryOperations

	if err := p.store.Append(ctx, event); err != nil {
		p.breaker.RecordFailure()
		p.metrics.IncPersistFailures()
		p.metrics.SetCircuitBreakerState(p.breaker.IsOpen())
		if p.logger != nil {
			p.logger.WarnContext(ctx, "ops audit dropped", "action", event.Action, "error", err)
		}
		return nil
	}
	p.breaker.RecordSuccess()
	p.metrics.SetCircuitBreakerState(false)
	p.metrics.IncTracked()
	return nil
}
