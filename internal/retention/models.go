package retention

import "time"

// Strategy decides what happens to an entity past its retention threshold.
type Strategy string

const (
	// StrategyFull anonymizes every PII field.
	StrategyFull Strategy = "full"
	// StrategyPartial anonymizes only the rule's listed fields.
	StrategyPartial Strategy = "partial"
	// StrategyDelete hard-deletes the entity.
	StrategyDelete Strategy = "delete"
	// StrategyArchive flags the entity archived without touching its fields.
	StrategyArchive Strategy = "archive"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyFull, StrategyPartial, StrategyDelete, StrategyArchive:
		return true
	}
	return false
}

// Action is the outcome recorded for one acted-upon entity.
type Action string

const (
	ActionAnonymized Action = "anonymized"
	ActionDeleted    Action = "deleted"
	ActionArchived   Action = "archived"
)

// Rule is one per-(tenant, entity type) retention policy. Inactive rules are
// skipped by the engine but kept for the record.
type Rule struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	EntityType      string    `json:"entity_type"`
	RetentionDays   int       `json:"retention_days"`
	Strategy        Strategy  `json:"strategy"`
	AnonymizeFields []string  `json:"anonymize_fields,omitempty"`
	Active          bool      `json:"active"`
	Description     string    `json:"description,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// LogEntry records one entity actually acted upon in a live run. Dry runs
// write no entries.
type LogEntry struct {
	ID                string         `json:"id"`
	TenantID          string         `json:"tenant_id"`
	RuleID            string         `json:"rule_id"`
	EntityType        string         `json:"entity_type"`
	EntityID          string         `json:"entity_id"`
	Action            Action         `json:"action"`
	FieldsAnonymized  []string       `json:"fields_anonymized,omitempty"`
	OriginalCreatedAt time.Time      `json:"original_created_at"`
	ProcessedAt       time.Time      `json:"processed_at"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// LogFilter narrows GetLogs reads.
type LogFilter struct {
	TenantID   string
	RuleID     string
	EntityType string
	Limit      int
}

// RuleError is one rule's failure inside an otherwise-continuing run.
type RuleError struct {
	RuleID     string `json:"rule_id"`
	EntityType string `json:"entity_type"`
	Message    string `json:"message"`
}

// Result aggregates one ApplyRules run. In dry-run mode the counts are
// candidates, not actions taken.
type Result struct {
	TenantID   string      `json:"tenant_id"`
	DryRun     bool        `json:"dry_run"`
	Anonymized int         `json:"anonymized"`
	Deleted    int         `json:"deleted"`
	Archived   int         `json:"archived"`
	Errors     []RuleError `json:"errors,omitempty"`
}

// Total is the number of entities counted across all actions.
func (r Result) Total() int {
	return r.Anonymized + r.Deleted + r.Archived
}

// Candidate is one entity past a rule's age threshold.
type Candidate struct {
	ID        string
	CreatedAt time.Time
}
