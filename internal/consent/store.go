package consent

import (
	"context"
	"time"
)

// Store persists consent records.
type Store interface {
	Insert(ctx context.Context, record Record) error
	// FindActive returns the single granted, unrevoked record for the
	// purpose+subject pair, or sentinel.ErrNotFound.
	FindActive(ctx context.Context, tenantID string, purpose Purpose, subject SubjectRef) (*Record, error)
	MarkRevoked(ctx context.Context, id string, revokedAt time.Time, reason string) error
	ListBySubject(ctx context.Context, tenantID string, subject SubjectRef) ([]Record, error)
}
