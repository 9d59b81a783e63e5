package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"peicollab/internal/audit"
	"peicollab/pkg/requestcontext"
)

// Broadcaster publishes event envelopes to other connected clients.
// Best-effort: no delivery or ordering guarantee.
type Broadcaster interface {
	Publish(ctx context.Context, event Event) error
}

// WebhookSink receives every emitted envelope for external fan-out.
type WebhookSink interface {
	Dispatch(ctx context.Context, event Event)
}

// Counters is the subset of platform metrics the bus increments.
type Counters interface {
	EmittedInc(eventType string)
	HandlerFailureInc(eventType string)
	BroadcastDroppedInc()
}

// Subscription identifies one registered handler so it can be removed later.
type Subscription struct {
	eventType Type
	id        uint64
}

// HandlerError pairs a failed handler with its error. Handler failures are a
// reporting concern only; they never fail the Emit.
type HandlerError struct {
	EventType Type
	Err       error
}

func (e HandlerError) Error() string {
	return fmt.Sprintf("handler for %s: %v", e.EventType, e.Err)
}

// Result reports what one Emit accomplished. Audit, broadcast and handler
// failures surface here instead of as an error: the emitting mutation has
// already happened and must not be rolled back by observability problems.
type Result struct {
	Event         Event
	HandlerErrors []HandlerError
	AuditEventID  string
	Broadcast     bool
}

type registration struct {
	id      uint64
	handler Handler
}

// Bus is the process-wide domain event bus. Constructed once at startup and
// injected everywhere; there is no package-level singleton.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]registration
	nextID   uint64

	trail       audit.Recorder
	resolver    audit.TenantResolver
	broadcaster Broadcaster
	sink        WebhookSink
	counters    Counters
	logger      *slog.Logger
	tracer      trace.Tracer
	clock       func() time.Time
}

// BusOption configures optional collaborators on a Bus.
type BusOption func(*Bus)

// WithResolver sets the actor-to-tenant fallback used when the request
// context carries no tenant scope.
func WithResolver(resolver audit.TenantResolver) BusOption {
	return func(b *Bus) { b.resolver = resolver }
}

// WithBroadcaster enables cross-client broadcast of emitted events.
func WithBroadcaster(broadcaster Broadcaster) BusOption {
	return func(b *Bus) { b.broadcaster = broadcaster }
}

// WithWebhookSink enables webhook fan-out of emitted events.
func WithWebhookSink(sink WebhookSink) BusOption {
	return func(b *Bus) { b.sink = sink }
}

// WithCounters wires bus metrics.
func WithCounters(counters Counters) BusOption {
	return func(b *Bus) { b.counters = counters }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) BusOption {
	return func(b *Bus) { b.clock = clock }
}

func NewBus(trail audit.Recorder, logger *slog.Logger, opts ...BusOption) *Bus {
	b := &Bus{
		handlers: make(map[Type][]registration),
		trail:    trail,
		logger:   logger,
		tracer:   otel.Tracer("peicollab/events"),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// On registers a handler for the event type (or Wildcard for all events) and
// returns a subscription token for Off.
func (b *Bus) On(eventType Type, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], registration{id: b.nextID, handler: handler})
	return Subscription{eventType: eventType, id: b.nextID}
}

// Off removes a previously registered handler. Unknown tokens are ignored.
func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.handlers[sub.eventType]
	for i, reg := range regs {
		if reg.id == sub.id {
			b.handlers[sub.eventType] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Emit builds the event envelope, runs all matching handlers concurrently,
// broadcasts the envelope, projects it into the audit trail and hands it to
// the webhook sink. Emit never fails: every side effect is best-effort and
// its outcome is reported in the Result.
func (b *Bus) Emit(ctx context.Context, eventType Type, data, metadata map[string]any) Result {
	ctx, span := b.tracer.Start(ctx, "events.Emit",
		trace.WithAttributes(attribute.String("event.type", string(eventType))),
	)
	defer span.End()

	event := b.buildEnvelope(ctx, eventType, data, metadata)
	result := Result{Event: event}

	result.HandlerErrors = b.DispatchLocal(ctx, event)

	if b.broadcaster != nil {
		if err := b.broadcaster.Publish(ctx, event); err != nil {
			b.logger.WarnContext(ctx, "event broadcast dropped",
				"event_type", event.Type,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			if b.counters != nil {
				b.counters.BroadcastDroppedInc()
			}
		} else {
			result.Broadcast = true
		}
	}

	result.AuditEventID = b.project(ctx, event)

	if b.sink != nil {
		b.sink.Dispatch(ctx, event)
	}

	if b.counters != nil {
		b.counters.EmittedInc(string(event.Type))
	}
	return result
}

// DispatchLocal runs the type-specific and wildcard handlers for the event
// concurrently. Each failure is caught, logged and counted individually; one
// failing or panicking handler never prevents the others from running.
func (b *Bus) DispatchLocal(ctx context.Context, event Event) []HandlerError {
	b.mu.RLock()
	regs := make([]registration, 0, len(b.handlers[event.Type])+len(b.handlers[Wildcard]))
	regs = append(regs, b.handlers[event.Type]...)
	regs = append(regs, b.handlers[Wildcard]...)
	b.mu.RUnlock()

	if len(regs) == 0 {
		return nil
	}

	errs := make([]error, len(regs))
	var wg sync.WaitGroup
	for i, reg := range regs {
		wg.Add(1)
		go func(i int, handler Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()
			errs[i] = handler(ctx, event)
		}(i, reg.handler)
	}
	wg.Wait()

	var failures []HandlerError
	for _, err := range errs {
		if err == nil {
			continue
		}
		b.logger.ErrorContext(ctx, "event handler failed",
			"event_type", event.Type,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		if b.counters != nil {
			b.counters.HandlerFailureInc(string(event.Type))
		}
		failures = append(failures, HandlerError{EventType: event.Type, Err: err})
	}
	return failures
}

func (b *Bus) buildEnvelope(ctx context.Context, eventType Type, data, metadata map[string]any) Event {
	event := Event{
		Type:      eventType,
		Timestamp: b.clock().UTC(),
		UserID:    requestcontext.ActorID(ctx),
		TenantID:  requestcontext.TenantID(ctx),
		SchoolID:  requestcontext.SchoolID(ctx),
		Data:      data,
		Metadata:  metadata,
	}

	// Payload scope wins over request scope so system emitters can speak
	// for a specific tenant.
	if v, ok := data["tenant_id"].(string); ok && v != "" {
		event.TenantID = v
	}
	if v, ok := data["school_id"].(string); ok && v != "" {
		event.SchoolID = v
	}

	if event.TenantID == "" && b.resolver != nil && event.UserID != "" {
		tenantID, schoolID, err := b.resolver.ResolveTenant(ctx, event.UserID)
		if err != nil {
			b.logger.WarnContext(ctx, "tenant resolution failed for event",
				"event_type", eventType,
				"error", err,
			)
		} else {
			event.TenantID = tenantID
			if event.SchoolID == "" {
				event.SchoolID = schoolID
			}
		}
	}
	return event
}

// project writes the event's audit row. Skipped with a warning when the
// event type is unclassified or the payload carries no entity id.
func (b *Bus) project(ctx context.Context, event Event) string {
	class, ok := Classify(event.Type)
	if !ok {
		b.logger.WarnContext(ctx, "audit projection skipped - unclassified event type",
			"event_type", event.Type,
		)
		return ""
	}

	entityID := event.EntityID()
	if entityID == "" {
		b.logger.WarnContext(ctx, "audit projection skipped - no entity id in payload",
			"event_type", event.Type,
		)
		return ""
	}

	metadata := make(map[string]any, len(event.Metadata)+3)
	for k, v := range event.Metadata {
		metadata[k] = v
	}
	metadata["event_type"] = event.Type
	metadata["data"] = event.Data
	metadata["timestamp"] = event.Timestamp

	return b.trail.Log(ctx, audit.Entry{
		TenantID:   event.TenantID,
		EntityType: class.Entity,
		EntityID:   entityID,
		Action:     class.Action,
		ActorID:    event.UserID,
		Metadata:   metadata,
	})
}
