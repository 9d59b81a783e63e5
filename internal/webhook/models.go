package webhook

import (
	"time"

	"peicollab/internal/events"
)

// Config is one tenant-configured (or global, TenantID empty) webhook
// endpoint. Deliveries go only to enabled configs whose Events list contains
// the emitted type.
type Config struct {
	ID        string        `json:"id"`
	TenantID  string        `json:"tenant_id,omitempty"`
	Name      string        `json:"name"`
	URL       string        `json:"url"`
	Secret    string        `json:"-"`
	Events    []events.Type `json:"events"`
	Enabled   bool          `json:"enabled"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Subscribed reports whether the config wants the event type.
func (c Config) Subscribed(eventType events.Type) bool {
	for _, t := range c.Events {
		if t == eventType {
			return true
		}
	}
	return false
}

// DeliveryLog records the outcome of one delivery attempt. There is exactly
// one attempt per emit, no retries.
type DeliveryLog struct {
	ID         string      `json:"id"`
	WebhookID  string      `json:"webhook_id"`
	EventType  events.Type `json:"event_type"`
	Success    bool        `json:"success"`
	StatusCode int         `json:"status_code,omitempty"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
