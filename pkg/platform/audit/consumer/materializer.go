package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"secutoken/internal/platform/kafka/consumer"
	audit "secutoken/pkg/platform/audit"
)

// Sink stores relayed events for querying.
type Sink interface {
	Materialize(ctx context.Context, event audit.Event) error
}

// Materializer writes audit events from Kafka into the query table.
type Materializer struct {
	sink   Sink
	logger *slog.Logger
}

func NewMaterializer(sink Sink, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{sink: sink, logger: logger}
}

// Handle decodes and stores one event. Undecodable payloads are logged and
// skipped; storage errors are returned so the record is redelivered.
func (m *Materializer) Handle(ctx context.Context, msg *consumer.Message) error {
	var event audit.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		m.logger.Error("poison audit record skipped", "offset", msg.Offset, "partition", msg.Partition, "error", err)
		return nil
	}
	if event.ID == "" {
		m.logger.Error("audit record without id skipped", "offset", msg.Offset, "action", event.Action)
		return nil
	}
	return m.sink.Materialize(ctx, event)
}
