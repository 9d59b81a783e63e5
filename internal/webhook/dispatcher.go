// Package webhook delivers emitted event envelopes to tenant-configured
// external endpoints, exactly once per emit, with per-endpoint failure
// isolation and a signed payload when the config carries a secret.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"peicollab/internal/events"
	dErrors "peicollab/pkg/domain-errors"
	"peicollab/pkg/platform/sentinel"
	"peicollab/pkg/requestcontext"
)

const maxConcurrentDeliveries = 8

// Counters is the subset of platform metrics the dispatcher increments.
type Counters interface {
	DeliveryInc(outcome string)
}

// Dispatcher fans out event envelopes to subscribed webhook endpoints. It
// implements the bus's WebhookSink.
type Dispatcher struct {
	store    Store
	client   *http.Client
	logger   *slog.Logger
	counters Counters
	clock    func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHTTPClient overrides the delivery client, for tests.
func WithHTTPClient(client *http.Client) DispatcherOption {
	return func(d *Dispatcher) { d.client = client }
}

// WithCounters wires delivery metrics.
func WithCounters(counters Counters) DispatcherOption {
	return func(d *Dispatcher) { d.counters = counters }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.clock = clock }
}

func NewDispatcher(store Store, timeout time.Duration, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		client: &http.Client{Timeout: timeout},
		logger: logger,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers the envelope to every enabled, subscribed endpoint for
// the event's tenant, concurrently. Each delivery is attempted exactly once;
// failures are logged per endpoint and never surface to the emitter.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.Event) {
	configs, err := d.store.ListForEvent(ctx, event.TenantID, event.Type)
	if err != nil {
		d.logger.WarnContext(ctx, "webhook lookup failed",
			"event_type", event.Type,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}
	if len(configs) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.WarnContext(ctx, "webhook payload marshal failed",
			"event_type", event.Type,
			"error", err,
		)
		return
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentDeliveries)
	for _, config := range configs {
		g.Go(func() error {
			d.deliver(ctx, config, event, payload)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, config Config, event events.Event, payload []byte) {
	log := DeliveryLog{
		ID:        uuid.NewString(),
		WebhookID: config.ID,
		EventType: event.Type,
		CreatedAt: d.clock().UTC(),
	}

	statusCode, err := d.post(ctx, config, event, payload)
	log.StatusCode = statusCode
	if err != nil {
		log.Error = err.Error()
		d.logger.WarnContext(ctx, "webhook delivery failed",
			"webhook_id", config.ID,
			"url", config.URL,
			"event_type", event.Type,
			"error", err,
		)
		d.deliveryInc("failure")
	} else {
		log.Success = true
		d.deliveryInc("success")
	}

	if err := d.store.LogDelivery(ctx, log); err != nil {
		d.logger.WarnContext(ctx, "webhook delivery log write failed",
			"webhook_id", config.ID,
			"error", err,
		)
	}
}

func (d *Dispatcher) post(ctx context.Context, config Config, event events.Event, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", string(event.Type))
	req.Header.Set("X-Webhook-Timestamp", event.Timestamp.Format(time.RFC3339))
	if config.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(payload, config.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// Sign computes the hex-encoded HMAC-SHA256 of the payload under the shared
// secret. Receivers recompute it over the raw request body to authenticate
// the delivery.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Save validates and upserts a webhook config, assigning an id on create.
func (d *Dispatcher) Save(ctx context.Context, config Config) (Config, error) {
	if config.URL == "" {
		return Config{}, dErrors.New(dErrors.CodeBadRequest, "webhook url is required")
	}
	if len(config.Events) == 0 {
		return Config{}, dErrors.New(dErrors.CodeBadRequest, "webhook must subscribe to at least one event type")
	}

	now := d.clock().UTC()
	if config.ID == "" {
		config.ID = uuid.NewString()
		config.CreatedAt = now
	}
	config.UpdatedAt = now
	if err := d.store.Upsert(ctx, config); err != nil {
		return Config{}, dErrors.Wrap(err, dErrors.CodeInternal, "save webhook")
	}
	return config, nil
}

// Remove deletes a webhook config.
func (d *Dispatcher) Remove(ctx context.Context, id string) error {
	err := d.store.Delete(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "webhook not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete webhook")
	}
	return nil
}

// List returns the tenant's webhook configs.
func (d *Dispatcher) List(ctx context.Context, tenantID string) ([]Config, error) {
	configs, err := d.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list webhooks")
	}
	return configs, nil
}

// Deliveries returns recent delivery outcomes for one webhook.
func (d *Dispatcher) Deliveries(ctx context.Context, webhookID string, limit int) ([]DeliveryLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	logs, err := d.store.ListDeliveries(ctx, webhookID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list webhook deliveries")
	}
	return logs, nil
}

func (d *Dispatcher) deliveryInc(outcome string) {
	if d.counters != nil {
		d.counters.DeliveryInc(outcome)
	}
}
