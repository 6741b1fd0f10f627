package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"secutoken/pkg/platform/audit/store/postgres"
)

// Outbox is the read side of the audit outbox table.
type Outbox interface {
	PendingOutbox(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, entryID uuid.UUID, at time.Time) error
}

// Producer publishes a keyed record.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Relay moves committed outbox rows to Kafka. Entries are keyed by subject so
// a holder's events stay ordered within a partition. Delivery is at least once.
type Relay struct {
	outbox    Outbox
	producer  Producer
	topic     string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
}

func NewRelay(outbox Outbox, producer Producer, topic string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		outbox:    outbox,
		producer:  producer,
		topic:     topic,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		logger:    logger,
	}
}

// RelayOnce publishes one batch and returns how many entries were relayed.
// It stops at the first produce failure so ordering is kept.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.outbox.PendingOutbox(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	for i, e := range entries {
		if err := r.producer.Produce(ctx, r.topic, []byte(e.AggregateID), e.Payload); err != nil {
			return i, err
		}
		if err := r.outbox.MarkPublished(ctx, e.ID, time.Now()); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}

// Run relays until ctx is cancelled. Full batches are followed immediately by another.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		n, err := r.RelayOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Warn("audit outbox relay failed", "error", err, "relayed", n)
		}
		if n == r.batchSize && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
