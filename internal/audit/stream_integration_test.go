//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"peicollab/internal/audit"
	"peicollab/internal/platform/kafka"
	"peicollab/pkg/testutil/containers"
)

func TestKafkaStreamMirrorsAuditEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rp := containers.GetManager().GetRedpanda(t)
	topic := "audit-events-" + uuid.NewString()
	rp.CreateTopics(t, topic)

	logger := slog.New(slog.NewTextHandler(streamTestWriter{t}, nil))

	producer, err := kafka.NewProducer(rp.Brokers, logger)
	require.NoError(t, err)
	require.NotNil(t, producer)

	stream := audit.NewKafkaStream(producer, topic, logger)

	ctx := context.Background()
	written := audit.Event{
		ID:         uuid.NewString(),
		TenantID:   "tenant-1",
		EntityType: audit.EntityStudent,
		EntityID:   "student-1",
		Action:     audit.ActionInsert,
		ActorID:    "teacher-1",
		Metadata:   map[string]any{"source": "import"},
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	stream.Publish(ctx, written)

	// Close flushes the async producer before we consume.
	producer.Close()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	fetches := consumer.PollFetches(pollCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, []byte("tenant-1"), records[0].Key,
		"stream keys by tenant so a tenant's trail stays ordered")

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, written.ID, got.ID)
	require.Equal(t, written.TenantID, got.TenantID)
	require.Equal(t, written.EntityType, got.EntityType)
	require.Equal(t, written.Action, got.Action)
	require.Equal(t, written.ActorID, got.ActorID)
}

type streamTestWriter struct{ t *testing.T }

func (w streamTestWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
