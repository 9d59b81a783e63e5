package retention

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peicollab/internal/audit"
	"peicollab/internal/privacy"
	dErrors "peicollab/pkg/domain-errors"
)

type stubAnonymizer struct {
	gotFields [][]string
	failFor   string
	calls     int
}

func (s *stubAnonymizer) AnonymizePersonalData(_ context.Context, _ string, subjectID string, subjectType privacy.SubjectType, _ string, _ string, fields []string) (privacy.AnonymizeResult, error) {
	s.calls++
	s.gotFields = append(s.gotFields, fields)
	if s.failFor != "" && subjectID == s.failFor {
		return privacy.AnonymizeResult{}, errors.New("anonymize boom")
	}
	anonymized := fields
	if anonymized == nil {
		anonymized = []string{"name", "email", "document"}
	}
	return privacy.AnonymizeResult{
		Success:          true,
		SubjectID:        subjectID,
		SubjectType:      string(subjectType),
		AnonymizedFields: anonymized,
		AnonymizationID:  "anon-" + subjectID,
	}, nil
}

type fixture struct {
	engine     *Engine
	rules      *MemoryRuleStore
	logs       *MemoryLogStore
	entities   *MemoryEntityStore
	anonymizer *stubAnonymizer
	auditStore *audit.MemoryStore
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	f := &fixture{
		rules:      NewMemoryRuleStore(),
		logs:       NewMemoryLogStore(),
		entities:   NewMemoryEntityStore(),
		anonymizer: &stubAnonymizer{},
		auditStore: audit.NewMemoryStore(),
		now:        time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	trail := audit.NewTrail(f.auditStore, logger)
	f.engine = NewEngine(f.rules, f.logs, f.entities, f.anonymizer, trail, logger,
		WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) seedRule(t *testing.T, rule Rule) string {
	t.Helper()
	id, err := f.engine.UpsertRule(context.Background(), rule)
	require.NoError(t, err)
	return id
}

func (f *fixture) auditEvents(t *testing.T, tenantID string) []audit.Event {
	t.Helper()
	events, err := f.auditStore.List(context.Background(), audit.Filter{TenantID: tenantID, Limit: 100})
	require.NoError(t, err)
	return events
}

func TestUpsertRuleValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	valid := Rule{TenantID: "t1", EntityType: "student", RetentionDays: 365, Strategy: StrategyDelete, Active: true}

	cases := []struct {
		name   string
		mutate func(*Rule)
	}{
		{"missing tenant", func(r *Rule) { r.TenantID = "" }},
		{"unknown entity type", func(r *Rule) { r.EntityType = "invoice" }},
		{"zero retention days", func(r *Rule) { r.RetentionDays = 0 }},
		{"negative retention days", func(r *Rule) { r.RetentionDays = -30 }},
		{"unknown strategy", func(r *Rule) { r.Strategy = "shred" }},
		{"partial without fields", func(r *Rule) { r.Strategy = StrategyPartial; r.AnonymizeFields = nil }},
		{"anonymize non-person entity", func(r *Rule) { r.EntityType = "plan"; r.Strategy = StrategyFull }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := valid
			tc.mutate(&rule)
			_, err := f.engine.UpsertRule(ctx, rule)
			require.Error(t, err)
			assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
		})
	}

	id, err := f.engine.UpsertRule(ctx, valid)
	require.NoError(t, err)
	require.NotEmpty(t, id)
}

func TestUpsertRuleReplacesExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.seedRule(t, Rule{TenantID: "t1", EntityType: "student", RetentionDays: 365, Strategy: StrategyDelete, Active: true})
	second := f.seedRule(t, Rule{TenantID: "t1", EntityType: "student", RetentionDays: 730, Strategy: StrategyArchive, Active: true})
	assert.Equal(t, first, second)

	rules, err := f.engine.GetRules(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 730, rules[0].RetentionDays)
	assert.Equal(t, StrategyArchive, rules[0].Strategy)
}

func TestApplyRulesDryRunMutatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedRule(t, Rule{TenantID: "t1", EntityType: "student", RetentionDays: 30, Strategy: StrategyFull, Active: true})
	f.seedRule(t, Rule{TenantID: "t1", EntityType: "plan", RetentionDays: 30, Strategy: StrategyDelete, Active: true})
	f.seedRule(t, Rule{TenantID: "t1", EntityType: "guardian", RetentionDays: 30, Strategy: StrategyArchive, Active: true})

	old := f.now.AddDate(0, 0, -60)
	f.entities.Seed("t1", "student", "s1", old)
	f.entities.Seed("t1", "student", "s2", old)
	f.entities.Seed("t1", "plan", "p1", old)
	f.entities.Seed("t1", "guardian", "g1", old)
	f.entities.Seed("t1", "student", "fresh", f.now.AddDate(0, 0, -1))

	result, err := f.engine.ApplyRules(ctx, "t1", true)
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Equal(t, 2, result.Anonymized)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.Archived)
	assert.Equal(t, 4, result.Total())
	assert.Empty(t, result.Errors)

	// A preview touches nothing: no anonymizer calls, no log entries, no
	// deletions or archive flags, no audit events.
	assert.Zero(t, f.anonymizer.calls)
	entries, err := f.logs.List(ctx, LogFilter{TenantID: "t1", Limit: 100})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.True(t, f.entities.Exists("p1"))
	assert.False(t, f.entities.Archived("g1"))
	assert.Empty(t, f.auditEvents(t, "t1"))
}

func TestApplyRulesLiveRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedRule(t, Rule{TenantID: "t1", EntityType: "student", RetentionDays: 30, Strategy: StrategyFull, Active: true})
	f.seedRule(t, Rule{TenantID: "t1", EntityType: "plan", RetentionDays: 30, Strategy: StrategyDelete, Active: true})
	f.seedRule(t, Rule{TenantID: "t1", EntityType: "guardian", RetentionDays: 30, Strategy: StrategyArchive, Active: true})

	old := f.now.AddDate(0, 0, -60)
	f.entities.Seed("t1", "student", "s1", old)
	f.entities.Seed("t1", "plan", "p1", old)
	f.entities.Seed("t1", "guardian", "g1", old)

	preview, err := f.engine.ApplyRules(ctx, "t1", true)
	require.NoError(t, err)

	result, err := f.engine.ApplyRules(ctx, "t1", false)
	require.NoError(t, err)

	// The live run acts on exactly what the preview counted.
	assert.Equal(t, preview.Anonymized, result.Anonymized)
	assert.Equal(t, preview.Deleted, result.Deleted)
	assert.Equal(t, preview.Archived, result.Archived)
	assert.Empty(t, result.Errors)

	assert.Equal(t, 1, f.anonymizer.calls)
	assert.False(t, f.entities.Exists("p1"))
	assert.True(t, f.entities.Archived("g1"))

	entries, err := f.logs.List(ctx, LogFilter{TenantID: "t1", Limit: 100})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	byEntity := make(map[string]LogEntry, len(entries))
	for _, entry := range entries {
		byEntity[entry.EntityID] = entry
	}
	assert.Equal(t, ActionAnonymized, byEntity["s1"].Action)
	assert.NotEmpty(t, byEntity["s1"].FieldsAnonymized)
	assert.Equal(t, ActionDeleted, byEntity["p1"].Action)
	assert.Equal(t, ActionArchived, byEntity["g1"].Action)
	for _, entry := range entries {
		assert.Equal(t, old, entry.OriginalCreatedAt)
		assert.Equal(t, f.now, entry.ProcessedAt)
	}

	events := f.auditEvents(t, "t1")
	require.Len(t, events, 3)
	actions := make(map[string]audit.Action, len(events))
	for _, event := range events {
		actions[event.EntityID] = event.Action
		assert.Equal(t, retentionActor, event.ActorID)
	}
	assert.Equal(t, audit.ActionAnonymize, actions["s1"])
	assert.Equal(t, audit.ActionDelete, actions["p1"])
	assert.Equal(t, audit.ActionUpdate, actions["g1"])
}

func TestApplyRulesPartialStrategyPassesFieldList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedRule(t, Rule{
		TenantID: "t1", EntityType: "guardian", RetentionDays: 90,
		Strategy: StrategyPartial, AnonymizeFields: []string{"phone", "address"}, Active: true,
	})
	f.entities.Seed("t1", "guardian", "g1", f.now.AddDate(0, 0, -180))

	result, err := f.engine.ApplyRules(ctx, "t1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Anonymized)

	require.Len(t, f.anonymizer.gotFields, 1)
	assert.Equal(t, []string{"phone", "address"}, f.anonymizer.gotFields[0])
}

func TestApplyRulesFullStrategyPassesNilFields(t *testing.T) {
	f := newFixture(t)

	f.seedRule(t, Rule{TenantID: "t1", EntityType: "student", RetentionDays: 30, Strategy: StrategyFull, Active: true})
	f.entities.Seed("t1", "student", "s1", f.now.AddDate(0, 0, -60))

	_, err := f.engine.ApplyRules(context.Background(), "t1", false)
	require.NoError(t, err)

	require.Len(t, f.anonymizer.gotFields, 1)
	assert.Nil(t, f.anonymizer.gotFields[0])
}

func TestApplyRulesSkipsInactiveRules(t *testing.T) {
	f := newFixture(t)

	f.seedRule(t, Rule{TenantID: "t1", EntityType: "student", RetentionDays: 30, Strategy: StrategyDelete, Active: false})
	f.entities.Seed("t1", "student", "s1", f.now.AddDate(0, 0, -60))

	result, err := f.engine.ApplyRules(context.Background(), "t1", false)
	require.NoError(t, err)
	assert.Zero(t, result.Total())
	assert.True(t, f.entities.Exists("s1"))
}

func TestApplyRulesCollectsErrorsAndContinues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.anonymizer.failFor = "s-bad"
	f.seedRule(t, Rule{TenantID: "t1", EntityType: "student", RetentionDays: 30, Strategy: StrategyFull, Active: true})
	f.seedRule(t, Rule{TenantID: "t1", EntityType: "plan", RetentionDays: 30, Strategy: StrategyDelete, Active: true})

	old := f.now.AddDate(0, 0, -60)
	f.entities.Seed("t1", "student", "s-bad", old)
	f.entities.Seed("t1", "student", "s-good", old)
	f.entities.Seed("t1", "plan", "p1", old)

	result, err := f.engine.ApplyRules(ctx, "t1", false)
	require.NoError(t, err)

	// One entity failed; its sibling and the other rule still ran.
	assert.Equal(t, 1, result.Anonymized)
	assert.Equal(t, 1, result.Deleted)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "student", result.Errors[0].EntityType)
	assert.Contains(t, result.Errors[0].Message, "s-bad")

	entries, err := f.logs.List(ctx, LogFilter{TenantID: "t1", Limit: 100})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestApplyRulesRequiresTenant(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ApplyRules(context.Background(), "", false)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
}

func TestGetLogsFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ruleID := f.seedRule(t, Rule{TenantID: "t1", EntityType: "student", RetentionDays: 30, Strategy: StrategyDelete, Active: true})
	f.seedRule(t, Rule{TenantID: "t1", EntityType: "guardian", RetentionDays: 30, Strategy: StrategyArchive, Active: true})

	old := f.now.AddDate(0, 0, -60)
	f.entities.Seed("t1", "student", "s1", old)
	f.entities.Seed("t1", "guardian", "g1", old)

	_, err := f.engine.ApplyRules(ctx, "t1", false)
	require.NoError(t, err)

	byRule, err := f.engine.GetLogs(ctx, LogFilter{TenantID: "t1", RuleID: ruleID})
	require.NoError(t, err)
	require.Len(t, byRule, 1)
	assert.Equal(t, "s1", byRule[0].EntityID)

	byType, err := f.engine.GetLogs(ctx, LogFilter{TenantID: "t1", EntityType: "guardian"})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "g1", byType[0].EntityID)

	_, err = f.engine.GetLogs(ctx, LogFilter{})
	require.Error(t, err)
}

func TestSetRuleActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.seedRule(t, Rule{TenantID: "t1", EntityType: "student", RetentionDays: 30, Strategy: StrategyArchive, Active: true})
	f.entities.Seed("t1", "student", "s-old", f.now.AddDate(0, 0, -60))

	require.NoError(t, f.engine.SetRuleActive(ctx, id, false))

	rules, err := f.engine.GetRules(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.False(t, rules[0].Active)

	result, err := f.engine.ApplyRules(ctx, "t1", false)
	require.NoError(t, err)
	assert.Zero(t, result.Total(), "deactivated rule must be skipped")

	require.NoError(t, f.engine.SetRuleActive(ctx, id, true))
	result, err = f.engine.ApplyRules(ctx, "t1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Archived)

	err = f.engine.SetRuleActive(ctx, "missing", true)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func TestDeleteRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.seedRule(t, Rule{TenantID: "t1", EntityType: "student", RetentionDays: 30, Strategy: StrategyDelete, Active: true})
	require.NoError(t, f.engine.DeleteRule(ctx, id))

	rules, err := f.engine.GetRules(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, rules)

	require.Error(t, f.engine.DeleteRule(ctx, id))
}
