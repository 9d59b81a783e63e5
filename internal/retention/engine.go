// Package retention applies per-(tenant, entity type) age rules: anonymize,
// delete or archive records past their threshold, with a dry-run mode that
// previews impact without mutating anything.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"peicollab/internal/audit"
	"peicollab/internal/privacy"
	dErrors "peicollab/pkg/domain-errors"
	"peicollab/pkg/platform/sentinel"
	"peicollab/pkg/requestcontext"
)

const retentionActor = "retention-engine"

// Counters is the subset of platform metrics the engine increments.
type Counters interface {
	ActionInc(action string)
}

// Engine evaluates and applies retention rules.
type Engine struct {
	rules      RuleStore
	logs       LogStore
	entities   EntityStore
	anonymizer privacy.Anonymizer
	recorder   audit.Recorder
	logger     *slog.Logger
	counters   Counters
	clock      func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCounters wires engine metrics.
func WithCounters(counters Counters) EngineOption {
	return func(e *Engine) { e.counters = counters }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) { e.clock = clock }
}

func NewEngine(rules RuleStore, logs LogStore, entities EntityStore, anonymizer privacy.Anonymizer, recorder audit.Recorder, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		rules:      rules,
		logs:       logs,
		entities:   entities,
		anonymizer: anonymizer,
		recorder:   recorder,
		logger:     logger,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UpsertRule creates or replaces the tenant's rule for the entity type.
func (e *Engine) UpsertRule(ctx context.Context, rule Rule) (string, error) {
	if rule.TenantID == "" {
		rule.TenantID = requestcontext.TenantID(ctx)
	}
	switch {
	case rule.TenantID == "":
		return "", dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	case !KnownEntityType(rule.EntityType):
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown entity type %q", rule.EntityType)
	case rule.RetentionDays <= 0:
		return "", dErrors.New(dErrors.CodeBadRequest, "retention period must be positive")
	case !rule.Strategy.Valid():
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown strategy %q", rule.Strategy)
	case rule.Strategy == StrategyPartial && len(rule.AnonymizeFields) == 0:
		return "", dErrors.New(dErrors.CodeBadRequest, "partial strategy requires an anonymize-fields list")
	}
	if rule.Strategy == StrategyFull || rule.Strategy == StrategyPartial {
		if !privacy.SubjectType(rule.EntityType).Valid() {
			return "", dErrors.Newf(dErrors.CodeBadRequest,
				"entity type %q cannot be anonymized, use delete or archive", rule.EntityType)
		}
	}

	now := e.clock().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	id, err := e.rules.Upsert(ctx, rule)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "upsert retention rule")
	}
	return id, nil
}

// GetRules returns the tenant's rules, active and inactive.
func (e *Engine) GetRules(ctx context.Context, tenantID string) ([]Rule, error) {
	if tenantID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	rules, err := e.rules.List(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list retention rules")
	}
	return rules, nil
}

// SetRuleActive toggles a rule without losing its configuration. Inactive
// rules are skipped by ApplyRules and the scheduler.
func (e *Engine) SetRuleActive(ctx context.Context, id string, active bool) error {
	err := e.rules.SetActive(ctx, id, active)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "retention rule not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "toggle retention rule")
	}
	return nil
}

// DeleteRule removes a rule entirely. Deactivation is the usual path; this
// is for rules that should never have existed.
func (e *Engine) DeleteRule(ctx context.Context, id string) error {
	err := e.rules.Delete(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "retention rule not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete retention rule")
	}
	return nil
}

// GetLogs returns retention outcomes, most recent first.
func (e *Engine) GetLogs(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	if filter.TenantID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	entries, err := e.logs.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list retention logs")
	}
	return entries, nil
}

// ApplyRules evaluates every active rule for the tenant. In dry-run mode it
// only counts candidates: no entity is mutated and no log entry is written.
// Rules fail independently; one broken rule never aborts the rest.
func (e *Engine) ApplyRules(ctx context.Context, tenantID string, dryRun bool) (Result, error) {
	if tenantID == "" {
		return Result{}, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}

	rules, err := e.rules.List(ctx, tenantID)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "list retention rules")
	}

	result := Result{TenantID: tenantID, DryRun: dryRun}
	now := e.clock().UTC()

	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		cutoff := now.AddDate(0, 0, -rule.RetentionDays)
		candidates, err := e.entities.ListExpired(ctx, tenantID, rule.EntityType, cutoff)
		if err != nil {
			result.Errors = append(result.Errors, RuleError{
				RuleID: rule.ID, EntityType: rule.EntityType, Message: err.Error(),
			})
			continue
		}

		for _, candidate := range candidates {
			if dryRun {
				result.add(rule.Strategy)
				continue
			}
			if err := e.apply(ctx, rule, candidate, now); err != nil {
				result.Errors = append(result.Errors, RuleError{
					RuleID:     rule.ID,
					EntityType: rule.EntityType,
					Message:    fmt.Sprintf("entity %s: %v", candidate.ID, err),
				})
				continue
			}
			result.add(rule.Strategy)
		}
	}

	e.logger.InfoContext(ctx, "retention run finished",
		"tenant_id", tenantID,
		"dry_run", dryRun,
		"anonymized", result.Anonymized,
		"deleted", result.Deleted,
		"archived", result.Archived,
		"errors", len(result.Errors),
	)
	return result, nil
}

func (e *Engine) apply(ctx context.Context, rule Rule, candidate Candidate, now time.Time) error {
	var (
		action audit.Action
		entry  = LogEntry{
			ID:                uuid.NewString(),
			TenantID:          rule.TenantID,
			RuleID:            rule.ID,
			EntityType:        rule.EntityType,
			EntityID:          candidate.ID,
			OriginalCreatedAt: candidate.CreatedAt,
			ProcessedAt:       now,
		}
	)

	switch rule.Strategy {
	case StrategyFull, StrategyPartial:
		var fields []string
		if rule.Strategy == StrategyPartial {
			fields = rule.AnonymizeFields
		}
		reason := fmt.Sprintf("retention rule for %s after %d days", rule.EntityType, rule.RetentionDays)
		anonymized, err := e.anonymizer.AnonymizePersonalData(ctx, rule.TenantID, candidate.ID,
			privacy.SubjectType(rule.EntityType), reason, retentionActor, fields)
		if err != nil {
			return err
		}
		entry.Action = ActionAnonymized
		entry.FieldsAnonymized = anonymized.AnonymizedFields
		entry.Metadata = map[string]any{"anonymization_id": anonymized.AnonymizationID}
		action = audit.ActionAnonymize

	case StrategyDelete:
		if err := e.entities.Delete(ctx, rule.TenantID, rule.EntityType, candidate.ID); err != nil {
			return err
		}
		entry.Action = ActionDeleted
		action = audit.ActionDelete

	case StrategyArchive:
		if err := e.entities.Archive(ctx, rule.TenantID, rule.EntityType, candidate.ID); err != nil {
			return err
		}
		entry.Action = ActionArchived
		action = audit.ActionUpdate

	default:
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown strategy %q", rule.Strategy)
	}

	if err := e.logs.Insert(ctx, entry); err != nil {
		return fmt.Errorf("write retention log: %w", err)
	}

	e.recorder.Log(ctx, audit.Entry{
		TenantID:   rule.TenantID,
		EntityType: audit.EntityType(rule.EntityType),
		EntityID:   candidate.ID,
		Action:     action,
		ActorID:    retentionActor,
		Metadata: map[string]any{
			"retention_rule_id": rule.ID,
			"strategy":          rule.Strategy,
		},
	})
	if e.counters != nil {
		e.counters.ActionInc(string(entry.Action))
	}
	return nil
}

func (r *Result) add(strategy Strategy) {
	switch strategy {
	case StrategyFull, StrategyPartial:
		r.Anonymized++
	case StrategyDelete:
		r.Deleted++
	case StrategyArchive:
		r.Archived++
	}
}
