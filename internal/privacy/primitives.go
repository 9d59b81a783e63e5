// Package privacy wraps the SQL-level export and anonymization procedures.
// The procedures themselves are opaque to this service; this package only
// types their inputs and outputs for the DSR workflow and retention engine.
package privacy

import (
	"context"
	"time"
)

// SubjectType identifies which kind of person a privacy operation targets.
type SubjectType string

const (
	SubjectStudent      SubjectType = "student"
	SubjectUser         SubjectType = "user"
	SubjectGuardian     SubjectType = "guardian"
	SubjectProfessional SubjectType = "professional"
)

func (s SubjectType) Valid() bool {
	switch s {
	case SubjectStudent, SubjectUser, SubjectGuardian, SubjectProfessional:
		return true
	}
	return false
}

// ExportBundle is the structured personal-data package returned by the export
// procedure, attached verbatim to access/portability DSR responses.
type ExportBundle struct {
	SubjectID     string     `json:"subject_id"`
	SubjectType   string     `json:"subject_type"`
	TenantID      string     `json:"tenant_id"`
	ExportedAt    time.Time  `json:"exported_at"`
	FormatVersion string     `json:"format_version"`
	Data          ExportData `json:"data"`
}

// ExportData groups the exported record sets by origin.
type ExportData struct {
	Profile      map[string]any `json:"profile,omitempty"`
	Enrollments  []any          `json:"enrollments,omitempty"`
	Grades       []any          `json:"grades,omitempty"`
	Attendance   []any          `json:"attendance,omitempty"`
	Plans        []any          `json:"plans,omitempty"`
	ServicePlans []any          `json:"service_plans,omitempty"`
	Consents     []any          `json:"consents,omitempty"`
	AuditEvents  []any          `json:"audit_events,omitempty"`
}

// AnonymizeResult reports what the anonymization procedure scrubbed.
type AnonymizeResult struct {
	Success          bool      `json:"success"`
	SubjectID        string    `json:"subject_id"`
	SubjectType      string    `json:"subject_type"`
	AnonymizedFields []string  `json:"anonymized_fields"`
	AnonymizedAt     time.Time `json:"anonymized_at"`
	AnonymizationID  string    `json:"anonymization_id"`
}

// Exporter produces the full personal-data bundle for a subject.
type Exporter interface {
	ExportPersonalData(ctx context.Context, tenantID, subjectID string, subjectType SubjectType) (ExportBundle, error)
}

// Anonymizer irreversibly scrubs a subject's personal fields. A nil or empty
// fields list means all PII fields; a non-empty list limits the scrub to
// those fields.
type Anonymizer interface {
	AnonymizePersonalData(ctx context.Context, tenantID, subjectID string, subjectType SubjectType, reason, actorID string, fields []string) (AnonymizeResult, error)
}
