package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes records to Kafka without blocking the caller. Delivery
// failures are logged; the audit trail in Postgres remains the queryable
// record, the stream is a downstream mirror.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewProducer connects to the given brokers. Returns nil if no brokers are
// configured (Kafka mirroring disabled).
func NewProducer(brokers []string, logger *slog.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Producer{client: client, logger: logger}, nil
}

// Produce sends one record asynchronously. The promise only logs failures;
// callers never wait on broker acknowledgement.
func (p *Producer) Produce(ctx context.Context, topic string, key, payload []byte) {
	record := &kgo.Record{Topic: topic, Key: key, Value: payload}
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("kafka produce failed",
				"topic", r.Topic,
				"error", err,
			)
		}
	})
}

// Close flushes buffered records and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}
