package privacy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// Postgres invokes the export and anonymization stored procedures.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) ExportPersonalData(ctx context.Context, tenantID, subjectID string, subjectType SubjectType) (ExportBundle, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT export_personal_data_v2($1, $2, $3)`,
		subjectID, subjectType, tenantID,
	).Scan(&raw)
	if err != nil {
		return ExportBundle{}, fmt.Errorf("export personal data: %w", err)
	}

	var bundle ExportBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return ExportBundle{}, fmt.Errorf("decode export bundle: %w", err)
	}
	return bundle, nil
}

func (p *Postgres) AnonymizePersonalData(ctx context.Context, tenantID, subjectID string, subjectType SubjectType, reason, actorID string, fields []string) (AnonymizeResult, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT anonymize_personal_data_v2($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		subjectID, subjectType, tenantID, reason, actorID, pq.Array(fields),
	).Scan(&raw)
	if err != nil {
		return AnonymizeResult{}, fmt.Errorf("anonymize personal data: %w", err)
	}

	var result AnonymizeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return AnonymizeResult{}, fmt.Errorf("decode anonymize result: %w", err)
	}
	return result, nil
}
