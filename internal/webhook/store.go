package webhook

import (
	"context"

	"peicollab/internal/events"
)

// Store persists webhook configurations and delivery logs.
type Store interface {
	Upsert(ctx context.Context, config Config) error
	Delete(ctx context.Context, id string) error
	ListByTenant(ctx context.Context, tenantID string) ([]Config, error)
	// ListForEvent returns enabled configs subscribed to the event type,
	// scoped to the tenant plus global configs.
	ListForEvent(ctx context.Context, tenantID string, eventType events.Type) ([]Config, error)
	LogDelivery(ctx context.Context, log DeliveryLog) error
	ListDeliveries(ctx context.Context, webhookID string, limit int) ([]DeliveryLog, error)
}
