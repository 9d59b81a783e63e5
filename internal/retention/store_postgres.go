package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	dErrors "peicollab/pkg/domain-errors"
	"peicollab/pkg/platform/sentinel"
)

// entityTables whitelists the entity types the engine may touch and maps
// them to their table. Anything else is rejected before any SQL runs.
var entityTables = map[string]string{
	"student":      "students",
	"guardian":     "guardians",
	"professional": "professionals",
	"user":         "profiles",
	"plan":         "plans",
	"service_plan": "service_plans",
}

// KnownEntityType reports whether the engine can act on the entity type.
func KnownEntityType(entityType string) bool {
	_, ok := entityTables[entityType]
	return ok
}

// PostgresRuleStore persists retention rules in retention_rules.
type PostgresRuleStore struct {
	pool *pgxpool.Pool
}

func NewPostgresRuleStore(pool *pgxpool.Pool) *PostgresRuleStore {
	return &PostgresRuleStore{pool: pool}
}

func (s *PostgresRuleStore) Upsert(ctx context.Context, rule Rule) (string, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO retention_rules (id, tenant_id, entity_type, retention_days, strategy,
			anonymize_fields, active, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $9)
		ON CONFLICT (tenant_id, entity_type) DO UPDATE SET
			retention_days = EXCLUDED.retention_days,
			strategy = EXCLUDED.strategy,
			anonymize_fields = EXCLUDED.anonymize_fields,
			active = EXCLUDED.active,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at
		RETURNING id`,
		rule.ID, rule.TenantID, rule.EntityType, rule.RetentionDays, rule.Strategy,
		rule.AnonymizeFields, rule.Active, rule.Description, rule.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert retention rule: %w", err)
	}
	return id, nil
}

func (s *PostgresRuleStore) List(ctx context.Context, tenantID string) ([]Rule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, entity_type, retention_days, strategy, anonymize_fields,
			active, COALESCE(description, ''), created_at, updated_at
		FROM retention_rules
		WHERE tenant_id = $1
		ORDER BY entity_type`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query retention rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.ID, &rule.TenantID, &rule.EntityType, &rule.RetentionDays,
			&rule.Strategy, &rule.AnonymizeFields, &rule.Active, &rule.Description,
			&rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan retention rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retention rules: %w", err)
	}
	return rules, nil
}

func (s *PostgresRuleStore) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE retention_rules SET active = $2, updated_at = NOW() WHERE id = $1`,
		id, active)
	if err != nil {
		return fmt.Errorf("toggle retention rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresRuleStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM retention_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete retention rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresRuleStore) ListTenants(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT tenant_id FROM retention_rules WHERE active = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("query retention tenants: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var tenantID string
		if err := rows.Scan(&tenantID); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		tenants = append(tenants, tenantID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retention tenants: %w", err)
	}
	return tenants, nil
}

// PostgresLogStore persists retention outcomes in retention_logs.
type PostgresLogStore struct {
	pool *pgxpool.Pool
}

func NewPostgresLogStore(pool *pgxpool.Pool) *PostgresLogStore {
	return &PostgresLogStore{pool: pool}
}

func (s *PostgresLogStore) Insert(ctx context.Context, entry LogEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO retention_logs (id, tenant_id, rule_id, entity_type, entity_id, action,
			fields_anonymized, original_created_at, processed_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.TenantID, entry.RuleID, entry.EntityType, entry.EntityID,
		entry.Action, entry.FieldsAnonymized, entry.OriginalCreatedAt, entry.ProcessedAt, metadata,
	)
	if err != nil {
		return fmt.Errorf("insert retention log: %w", err)
	}
	return nil
}

func (s *PostgresLogStore) List(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	query := `
		SELECT id, tenant_id, rule_id, entity_type, entity_id, action,
			fields_anonymized, original_created_at, processed_at, metadata
		FROM retention_logs
		WHERE tenant_id = $1`
	args := []any{filter.TenantID}

	if filter.RuleID != "" {
		args = append(args, filter.RuleID)
		query += fmt.Sprintf(" AND rule_id = $%d", len(args))
	}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY processed_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query retention logs: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var entry LogEntry
		var metadata []byte
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.RuleID, &entry.EntityType,
			&entry.EntityID, &entry.Action, &entry.FieldsAnonymized,
			&entry.OriginalCreatedAt, &entry.ProcessedAt, &metadata); err != nil {
			return nil, fmt.Errorf("scan retention log: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retention logs: %w", err)
	}
	return entries, nil
}

// PostgresEntityStore runs age queries and delete/archive mutations against
// the whitelisted entity tables.
type PostgresEntityStore struct {
	pool *pgxpool.Pool
}

func NewPostgresEntityStore(pool *pgxpool.Pool) *PostgresEntityStore {
	return &PostgresEntityStore{pool: pool}
}

func (s *PostgresEntityStore) ListExpired(ctx context.Context, tenantID, entityType string, olderThan time.Time) ([]Candidate, error) {
	table, ok := entityTables[entityType]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown entity type %q", entityType)
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, created_at FROM %s
		WHERE tenant_id = $1 AND created_at < $2 AND archived_at IS NULL`, table),
		tenantID, olderThan)
	if err != nil {
		return nil, fmt.Errorf("query expired %s: %w", entityType, err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expired %s: %w", entityType, err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired %s: %w", entityType, err)
	}
	return candidates, nil
}

func (s *PostgresEntityStore) Delete(ctx context.Context, tenantID, entityType, id string) error {
	table, ok := entityTables[entityType]
	if !ok {
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown entity type %q", entityType)
	}
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1 AND id = $2`, table),
		tenantID, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", entityType, id, err)
	}
	return nil
}

func (s *PostgresEntityStore) Archive(ctx context.Context, tenantID, entityType, id string) error {
	table, ok := entityTables[entityType]
	if !ok {
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown entity type %q", entityType)
	}
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET archived_at = NOW() WHERE tenant_id = $1 AND id = $2`, table),
		tenantID, id)
	if err != nil {
		return fmt.Errorf("archive %s %s: %w", entityType, id, err)
	}
	return nil
}
