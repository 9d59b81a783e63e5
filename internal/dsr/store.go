package dsr

import (
	"context"
	"time"
)

// StatusUpdate carries the fields written alongside a status transition.
type StatusUpdate struct {
	ResponseData    map[string]any
	RejectionReason string
	AssignedTo      string
	UpdatedAt       time.Time
}

// Store persists DSR requests.
type Store interface {
	Insert(ctx context.Context, request Request) error
	// Get is a direct keyed read scoped by tenant; returns
	// sentinel.ErrNotFound for unknown ids.
	Get(ctx context.Context, tenantID, id string) (*Request, error)
	List(ctx context.Context, filter Filter) ([]Request, error)
	UpdateStatus(ctx context.Context, id string, status Status, update StatusUpdate) error
}
