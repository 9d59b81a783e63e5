package consent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"peicollab/pkg/platform/sentinel"
)

// PostgresStore persists consent records in the consents table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, record Record) error {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO consents (id, tenant_id, user_id, student_id, guardian_id, consent_type,
			granted, granted_at, metadata, ip_address, user_agent, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9,
			NULLIF($10, ''), NULLIF($11, ''), $12, $12)`,
		record.ID, record.TenantID, record.Subject.UserID, record.Subject.StudentID,
		record.Subject.GuardianID, record.Purpose, record.Granted, record.GrantedAt,
		metadata, record.IPAddress, record.UserAgent, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindActive(ctx context.Context, tenantID string, purpose Purpose, subject SubjectRef) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, COALESCE(user_id, ''), COALESCE(student_id, ''), COALESCE(guardian_id, ''),
			consent_type, granted, granted_at, revoked_at, COALESCE(revoke_reason, ''),
			metadata, COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at, updated_at
		FROM consents
		WHERE tenant_id = $1 AND consent_type = $2
			AND user_id IS NOT DISTINCT FROM NULLIF($3, '')
			AND student_id IS NOT DISTINCT FROM NULLIF($4, '')
			AND guardian_id IS NOT DISTINCT FROM NULLIF($5, '')
			AND granted = TRUE AND revoked_at IS NULL
		ORDER BY granted_at DESC
		LIMIT 1`,
		tenantID, purpose, subject.UserID, subject.StudentID, subject.GuardianID,
	)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active consent: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) MarkRevoked(ctx context.Context, id string, revokedAt time.Time, reason string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE consents
		SET granted = FALSE, revoked_at = $2, revoke_reason = NULLIF($3, ''), updated_at = $2
		WHERE id = $1 AND revoked_at IS NULL`,
		id, revokedAt, reason,
	)
	if err != nil {
		return fmt.Errorf("revoke consent: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke consent rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, tenantID string, subject SubjectRef) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, COALESCE(user_id, ''), COALESCE(student_id, ''), COALESCE(guardian_id, ''),
			consent_type, granted, granted_at, revoked_at, COALESCE(revoke_reason, ''),
			metadata, COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at, updated_at
		FROM consents
		WHERE tenant_id = $1
			AND user_id IS NOT DISTINCT FROM NULLIF($2, '')
			AND student_id IS NOT DISTINCT FROM NULLIF($3, '')
			AND guardian_id IS NOT DISTINCT FROM NULLIF($4, '')
		ORDER BY granted_at DESC`,
		tenantID, subject.UserID, subject.StudentID, subject.GuardianID,
	)
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var revokedAt sql.NullTime
	var metadata []byte
	err := row.Scan(
		&record.ID, &record.TenantID,
		&record.Subject.UserID, &record.Subject.StudentID, &record.Subject.GuardianID,
		&record.Purpose, &record.Granted, &record.GrantedAt, &revokedAt, &record.RevokeReason,
		&metadata, &record.IPAddress, &record.UserAgent, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		record.RevokedAt = &revokedAt.Time
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &record, nil
}
