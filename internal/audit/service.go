// Package audit implements the append-only compliance trail. Every consent
// change, lifecycle mutation, data export and anonymization lands here; the
// rest of the system depends on it, it depends on nothing above the platform.
package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	dErrors "peicollab/pkg/domain-errors"
	"peicollab/pkg/requestcontext"
)

const (
	defaultTrailLimit = 100
	maxTrailLimit     = 500
)

// TenantResolver maps an actor to its tenant and school scope when the
// request context carries neither. Best-effort: failures are swallowed.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, actorID string) (tenantID, schoolID string, err error)
}

// Recorder is the write side of the trail, implemented by Trail. Packages that
// only emit audit events depend on this instead of the full service.
type Recorder interface {
	Log(ctx context.Context, entry Entry) string
}

// Counters is the subset of platform metrics the trail increments.
type Counters interface {
	WrittenInc()
	DroppedInc()
}

// Trail records and reads audit events.
//
// Log never returns an error: auditing must not break the operation being
// audited. Events that cannot be attributed to a tenant, or that the store
// rejects, are dropped with a single warning and counted.
type Trail struct {
	store    Store
	logger   *slog.Logger
	resolver TenantResolver
	stream   Stream
	counters Counters
	clock    func() time.Time
}

// TrailOption configures optional collaborators on a Trail.
type TrailOption func(*Trail)

// WithResolver sets the actor-to-tenant fallback lookup.
func WithResolver(resolver TenantResolver) TrailOption {
	return func(t *Trail) { t.resolver = resolver }
}

// WithStream mirrors persisted events to a downstream stream.
func WithStream(stream Stream) TrailOption {
	return func(t *Trail) { t.stream = stream }
}

// WithCounters wires trail metrics.
func WithCounters(counters Counters) TrailOption {
	return func(t *Trail) { t.counters = counters }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) TrailOption {
	return func(t *Trail) { t.clock = clock }
}

func NewTrail(store Store, logger *slog.Logger, opts ...TrailOption) *Trail {
	t := &Trail{
		store:  store,
		logger: logger,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Log appends one event to the trail and returns its id, or "" if the event
// was dropped. Tenant and actor are filled from the request context when the
// entry leaves them empty; system-level events with no entity get a
// timestamped synthetic entity id so the row still satisfies the schema.
func (t *Trail) Log(ctx context.Context, entry Entry) string {
	actorID := entry.ActorID
	if actorID == "" {
		actorID = requestcontext.ActorID(ctx)
	}

	tenantID := entry.TenantID
	if tenantID == "" {
		tenantID = requestcontext.TenantID(ctx)
	}
	if tenantID == "" && t.resolver != nil && actorID != "" {
		resolved, _, err := t.resolver.ResolveTenant(ctx, actorID)
		if err == nil {
			tenantID = resolved
		}
	}
	if tenantID == "" {
		t.logger.WarnContext(ctx, "audit event dropped - no tenant",
			"entity_type", entry.EntityType,
			"action", entry.Action,
			"actor_id", actorID,
			"request_id", requestcontext.RequestID(ctx),
		)
		t.droppedInc()
		return ""
	}

	now := t.clock().UTC()

	entityID := entry.EntityID
	if entityID == "" {
		entityID = "system-" + strconv.FormatInt(now.UnixNano(), 36) + "-" + uuid.NewString()[:8]
	}

	event := Event{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		EntityType: entry.EntityType,
		EntityID:   entityID,
		Action:     entry.Action,
		ActorID:    actorID,
		Metadata:   entry.Metadata,
		CreatedAt:  now,
	}

	if err := t.store.Append(ctx, event); err != nil {
		t.logger.WarnContext(ctx, "audit event dropped - store append failed",
			"entity_type", event.EntityType,
			"action", event.Action,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		t.droppedInc()
		return ""
	}
	t.writtenInc()

	if t.stream != nil {
		t.stream.Publish(ctx, event)
	}
	return event.ID
}

// GetTrail returns events for a tenant, most recent first.
func (t *Trail) GetTrail(ctx context.Context, filter Filter) ([]Event, error) {
	if filter.TenantID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultTrailLimit
	}
	if filter.Limit > maxTrailLimit {
		filter.Limit = maxTrailLimit
	}

	events, err := t.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit events")
	}
	return events, nil
}

// ExportCSV writes the filtered trail as CSV, one row per event. Intended for
// compliance officers pulling evidence out of the system.
func (t *Trail) ExportCSV(ctx context.Context, filter Filter, w io.Writer) error {
	events, err := t.GetTrail(ctx, filter)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "tenant_id", "entity_type", "entity_id", "action", "actor_id", "created_at"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, event := range events {
		record := []string{
			event.ID,
			event.TenantID,
			string(event.EntityType),
			event.EntityID,
			string(event.Action),
			event.ActorID,
			event.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (t *Trail) writtenInc() {
	if t.counters != nil {
		t.counters.WrittenInc()
	}
}

func (t *Trail) droppedInc() {
	if t.counters != nil {
		t.counters.DroppedInc()
	}
}
