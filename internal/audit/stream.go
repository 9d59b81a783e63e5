package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"peicollab/internal/platform/kafka"
)

// Stream mirrors persisted audit events to a downstream consumer. Publishing
// is fire-and-forget; the Postgres trail remains the queryable record.
type Stream interface {
	Publish(ctx context.Context, event Event)
}

// KafkaStream publishes audit events to a Kafka topic, keyed by tenant so a
// tenant's trail stays ordered within a partition.
type KafkaStream struct {
	producer *kafka.Producer
	topic    string
	logger   *slog.Logger
}

func NewKafkaStream(producer *kafka.Producer, topic string, logger *slog.Logger) *KafkaStream {
	return &KafkaStream{producer: producer, topic: topic, logger: logger}
}

func (s *KafkaStream) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("marshal audit event for stream", "error", err)
		return
	}
	s.producer.Produce(ctx, s.topic, []byte(event.TenantID), payload)
}
