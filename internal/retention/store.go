package retention

import (
	"context"
	"time"
)

// RuleStore persists retention rules, unique per (tenant, entity type).
type RuleStore interface {
	Upsert(ctx context.Context, rule Rule) (string, error)
	List(ctx context.Context, tenantID string) ([]Rule, error)
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
	// ListTenants returns every tenant with at least one active rule, for
	// the scheduler's periodic sweep.
	ListTenants(ctx context.Context) ([]string, error)
}

// LogStore persists per-entity retention outcomes.
type LogStore interface {
	Insert(ctx context.Context, entry LogEntry) error
	List(ctx context.Context, filter LogFilter) ([]LogEntry, error)
}

// EntityStore is the generic entity access the engine drives: age-based
// candidate queries plus the delete and archive mutations. Anonymization
// goes through the privacy primitive instead.
type EntityStore interface {
	ListExpired(ctx context.Context, tenantID, entityType string, olderThan time.Time) ([]Candidate, error)
	Delete(ctx context.Context, tenantID, entityType, id string) error
	Archive(ctx context.Context, tenantID, entityType, id string) error
}
