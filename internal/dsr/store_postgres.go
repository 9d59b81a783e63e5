package dsr

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"peicollab/pkg/platform/sentinel"
)

// PostgresStore persists DSR requests in the dsr_requests table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `id, tenant_id, subject_id, subject_type, request_type, status,
	requested_by, COALESCE(requestor_document, ''), COALESCE(requestor_email, ''), COALESCE(requestor_phone, ''),
	description, COALESCE(assigned_to, ''), response_data, response_date, COALESCE(rejection_reason, ''),
	metadata, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, request Request) error {
	metadata, err := json.Marshal(request.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dsr_requests (id, tenant_id, subject_id, subject_type, request_type, status,
			requested_by, requestor_document, requestor_email, requestor_phone, description,
			metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13, $13)`,
		request.ID, request.TenantID, request.SubjectID, request.SubjectType, request.RequestType,
		request.Status, request.RequestedBy, request.RequestorDocument, request.RequestorEmail,
		request.RequestorPhone, request.Description, metadata, request.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dsr request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, tenantID, id string) (*Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM dsr_requests WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	request, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dsr request: %w", err)
	}
	return request, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM dsr_requests WHERE tenant_id = $1`
	args := []any{filter.TenantID}

	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		query += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}
	if filter.SubjectType != "" {
		args = append(args, filter.SubjectType)
		query += fmt.Sprintf(" AND subject_type = $%d", len(args))
	}
	if filter.RequestType != "" {
		args = append(args, filter.RequestType)
		query += fmt.Sprintf(" AND request_type = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dsr requests: %w", err)
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dsr request: %w", err)
		}
		requests = append(requests, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dsr requests: %w", err)
	}
	return requests, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status, update StatusUpdate) error {
	var responseData []byte
	if update.ResponseData != nil {
		var err error
		responseData, err = json.Marshal(update.ResponseData)
		if err != nil {
			return fmt.Errorf("marshal response data: %w", err)
		}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE dsr_requests
		SET status = $2,
			response_data = COALESCE($3, response_data),
			response_date = CASE WHEN $3 IS NOT NULL THEN $5 ELSE response_date END,
			rejection_reason = COALESCE(NULLIF($4, ''), rejection_reason),
			assigned_to = COALESCE(NULLIF($6, ''), assigned_to),
			updated_at = $5
		WHERE id = $1`,
		id, status, responseData, update.RejectionReason, update.UpdatedAt, update.AssignedTo,
	)
	if err != nil {
		return fmt.Errorf("update dsr request status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update dsr request rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var request Request
	var responseData, metadata []byte
	var responseDate sql.NullTime
	err := row.Scan(
		&request.ID, &request.TenantID, &request.SubjectID, &request.SubjectType,
		&request.RequestType, &request.Status, &request.RequestedBy,
		&request.RequestorDocument, &request.RequestorEmail, &request.RequestorPhone,
		&request.Description, &request.AssignedTo, &responseData, &responseDate,
		&request.RejectionReason, &metadata, &request.CreatedAt, &request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if responseDate.Valid {
		request.ResponseDate = &responseDate.Time
	}
	if len(responseData) > 0 {
		if err := json.Unmarshal(responseData, &request.ResponseData); err != nil {
			return nil, fmt.Errorf("unmarshal response data: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &request.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &request, nil
}
