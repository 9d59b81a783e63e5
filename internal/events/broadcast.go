package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"peicollab/internal/platform/redis"
)

// broadcastFrame wraps the envelope with the publishing instance's id so a
// subscriber can skip messages it published itself; local handlers already
// ran during Emit.
type broadcastFrame struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBroadcaster publishes emitted events to a shared pub/sub channel and
// replays events from other instances into the local bus. Delivery is
// best-effort: Redis being down degrades to single-instance operation, it
// never fails an Emit.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *slog.Logger
}

func NewRedisBroadcaster(client *redis.Client, channel string, logger *slog.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Publish sends the envelope to the shared channel.
func (r *RedisBroadcaster) Publish(ctx context.Context, event Event) error {
	frame, err := json.Marshal(broadcastFrame{Origin: r.origin, Event: event})
	if err != nil {
		return fmt.Errorf("marshal broadcast frame: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, frame).Err(); err != nil {
		return fmt.Errorf("publish broadcast frame: %w", err)
	}
	return nil
}

// Listen consumes broadcasts from other instances and dispatches them to the
// bus's local handlers only. Broadcast events are not re-audited or re-sent
// to webhooks: the emitting instance already did both. Blocks until the
// context is cancelled.
func (r *RedisBroadcaster) Listen(ctx context.Context, bus *Bus) {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var frame broadcastFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				r.logger.WarnContext(ctx, "malformed broadcast frame dropped", "error", err)
				continue
			}
			if frame.Origin == r.origin {
				continue
			}
			bus.DispatchLocal(ctx, frame.Event)
		}
	}
}
