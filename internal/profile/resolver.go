// Package profile resolves actors to their tenant and school scope from the
// profiles table. Used as the fallback when a request context carries no
// tenant, typically for system-initiated work attributed to a known user.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"peicollab/pkg/platform/sentinel"
)

// PostgresResolver implements audit.TenantResolver over the profiles table.
type PostgresResolver struct {
	db *sql.DB
}

func NewPostgresResolver(db *sql.DB) *PostgresResolver {
	return &PostgresResolver{db: db}
}

func (r *PostgresResolver) ResolveTenant(ctx context.Context, actorID string) (string, string, error) {
	var tenantID, schoolID string
	err := r.db.QueryRowContext(ctx, `
		SELECT tenant_id, COALESCE(school_id, '')
		FROM profiles
		WHERE id = $1`, actorID,
	).Scan(&tenantID, &schoolID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("resolve tenant for actor %s: %w", actorID, err)
	}
	return tenantID, schoolID, nil
}
