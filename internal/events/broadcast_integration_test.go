//go:build integration

package events_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"peicollab/internal/audit"
	"peicollab/internal/events"
	platformredis "peicollab/internal/platform/redis"
	"peicollab/pkg/testutil/containers"
)

func newBroadcastFixture(t *testing.T) (*platformredis.Client, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rc := containers.GetManager().GetRedis(t)
	client := &platformredis.Client{Client: rc.Client}

	// A fresh channel per test keeps suites sharing the container isolated.
	return client, "events:" + uuid.NewString()
}

func waitForSubscribers(t *testing.T, client *platformredis.Client, channel string, want int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		counts, err := client.PubSubNumSub(context.Background(), channel).Result()
		return err == nil && counts[channel] >= want
	}, 5*time.Second, 20*time.Millisecond, "subscribers never attached to %s", channel)
}

func TestBroadcastReachesOtherInstances(t *testing.T) {
	client, channel := newBroadcastFixture(t)
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emitterBus := events.NewBus(audit.NewTrail(audit.NewMemoryStore(), logger), logger,
		events.WithBroadcaster(events.NewRedisBroadcaster(client, channel, logger)))

	receiverBus := events.NewBus(audit.NewTrail(audit.NewMemoryStore(), logger), logger)
	received := make(chan events.Event, 1)
	receiverBus.On(events.StudentCreated, func(_ context.Context, event events.Event) error {
		received <- event
		return nil
	})

	receiver := events.NewRedisBroadcaster(client, channel, logger)
	go receiver.Listen(ctx, receiverBus)
	waitForSubscribers(t, client, channel, 1)

	result := emitterBus.Emit(ctx, events.StudentCreated,
		map[string]any{"id": "student-1", "tenant_id": "tenant-1"}, nil)
	require.True(t, result.Broadcast)

	select {
	case event := <-received:
		require.Equal(t, events.StudentCreated, event.Type)
		require.Equal(t, "tenant-1", event.TenantID)
		require.Equal(t, "student-1", event.EntityID())
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast event never reached the second instance")
	}
}

func TestBroadcastSkipsOwnOrigin(t *testing.T) {
	client, channel := newBroadcastFixture(t)
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broadcaster := events.NewRedisBroadcaster(client, channel, logger)
	bus := events.NewBus(audit.NewTrail(audit.NewMemoryStore(), logger), logger,
		events.WithBroadcaster(broadcaster))

	var handlerRuns atomic.Int32
	bus.On(events.PlanUpdated, func(_ context.Context, _ events.Event) error {
		handlerRuns.Add(1)
		return nil
	})

	// The emitting instance also listens on the shared channel, as every
	// deployed instance does.
	go broadcaster.Listen(ctx, bus)
	waitForSubscribers(t, client, channel, 1)

	result := bus.Emit(ctx, events.PlanUpdated,
		map[string]any{"id": "plan-1", "tenant_id": "tenant-1"}, nil)
	require.True(t, result.Broadcast)

	// Local dispatch ran the handler once during Emit. The loopback frame
	// must be skipped, so the count stays at one.
	time.Sleep(500 * time.Millisecond)
	require.Equal(t, int32(1), handlerRuns.Load())
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
