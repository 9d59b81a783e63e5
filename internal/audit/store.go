package audit

import "context"

// Store persists audit events. Append-only: implementations must never expose
// update or delete paths.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context, filter Filter) ([]Event, error)
}
