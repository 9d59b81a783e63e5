package webhook

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"peicollab/internal/events"
	"peicollab/pkg/platform/sentinel"
)

// PostgresStore persists webhook configs in webhooks and delivery outcomes in
// webhook_deliveries.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, config Config) error {
	eventTypes := make([]string, len(config.Events))
	for i, t := range config.Events {
		eventTypes[i] = string(t)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhooks (id, tenant_id, name, url, secret, events, enabled, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			secret = EXCLUDED.secret,
			events = EXCLUDED.events,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at`,
		config.ID, config.TenantID, config.Name, config.URL, config.Secret,
		pq.Array(eventTypes), config.Enabled, config.CreatedAt, config.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert webhook: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete webhook rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID string) ([]Config, error) {
	return s.list(ctx, `
		SELECT id, COALESCE(tenant_id, ''), name, url, COALESCE(secret, ''), events, enabled, created_at, updated_at
		FROM webhooks
		WHERE tenant_id IS NOT DISTINCT FROM NULLIF($1, '')
		ORDER BY created_at`, tenantID)
}

func (s *PostgresStore) ListForEvent(ctx context.Context, tenantID string, eventType events.Type) ([]Config, error) {
	return s.list(ctx, `
		SELECT id, COALESCE(tenant_id, ''), name, url, COALESCE(secret, ''), events, enabled, created_at, updated_at
		FROM webhooks
		WHERE enabled = TRUE
			AND $2 = ANY(events)
			AND (tenant_id IS NULL OR tenant_id = $1)
		ORDER BY created_at`, tenantID, string(eventType))
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]Config, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query webhooks: %w", err)
	}
	defer rows.Close()

	var configs []Config
	for rows.Next() {
		var config Config
		var eventTypes []string
		if err := rows.Scan(&config.ID, &config.TenantID, &config.Name, &config.URL,
			&config.Secret, pq.Array(&eventTypes), &config.Enabled,
			&config.CreatedAt, &config.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		config.Events = make([]events.Type, len(eventTypes))
		for i, t := range eventTypes {
			config.Events[i] = events.Type(t)
		}
		configs = append(configs, config)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhooks: %w", err)
	}
	return configs, nil
}

func (s *PostgresStore) LogDelivery(ctx context.Context, log DeliveryLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_deliveries (id, webhook_id, event_type, success, status_code, error, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		log.ID, log.WebhookID, log.EventType, log.Success, log.StatusCode, log.Error, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDeliveries(ctx context.Context, webhookID string, limit int) ([]DeliveryLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, webhook_id, event_type, success, COALESCE(status_code, 0), COALESCE(error, ''), created_at
		FROM webhook_deliveries
		WHERE webhook_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, webhookID, limit)
	if err != nil {
		return nil, fmt.Errorf("query webhook deliveries: %w", err)
	}
	defer rows.Close()

	var logs []DeliveryLog
	for rows.Next() {
		var log DeliveryLog
		if err := rows.Scan(&log.ID, &log.WebhookID, &log.EventType, &log.Success,
			&log.StatusCode, &log.Error, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook delivery: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook deliveries: %w", err)
	}
	return logs, nil
}
