//go:build integration

package retention_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"peicollab/internal/retention"
	"peicollab/pkg/platform/sentinel"
	"peicollab/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	pool     *pgxpool.Pool
	rules    *retention.PostgresRuleStore
	logs     *retention.PostgresLogStore
	entities *retention.PostgresEntityStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())

	pool, err := pgxpool.New(context.Background(), s.postgres.DSN)
	s.Require().NoError(err)
	s.pool = pool

	s.rules = retention.NewPostgresRuleStore(pool)
	s.logs = retention.NewPostgresLogStore(pool)
	s.entities = retention.NewPostgresEntityStore(pool)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	s.pool.Close()
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "retention_rules", "retention_logs", "students")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestUpsertRuleReplacesOnTenantAndEntityType() {
	ctx := context.Background()

	first := retention.Rule{
		TenantID:      "tenant-1",
		EntityType:    "student",
		RetentionDays: 365,
		Strategy:      retention.StrategyArchive,
		Active:        true,
		UpdatedAt:     time.Now().UTC(),
	}
	firstID, err := s.rules.Upsert(ctx, first)
	s.Require().NoError(err)
	s.NotEmpty(firstID)

	second := first
	second.ID = ""
	second.RetentionDays = 730
	second.Strategy = retention.StrategyPartial
	second.AnonymizeFields = []string{"email", "phone"}
	secondID, err := s.rules.Upsert(ctx, second)
	s.Require().NoError(err)
	s.Equal(firstID, secondID, "conflicting upsert keeps the original rule id")

	rules, err := s.rules.List(ctx, "tenant-1")
	s.Require().NoError(err)
	s.Require().Len(rules, 1)
	s.Equal(730, rules[0].RetentionDays)
	s.Equal(retention.StrategyPartial, rules[0].Strategy)
	s.Equal([]string{"email", "phone"}, rules[0].AnonymizeFields)
}

func (s *PostgresStoreSuite) TestDeleteRule() {
	ctx := context.Background()

	id, err := s.rules.Upsert(ctx, retention.Rule{
		TenantID:      "tenant-1",
		EntityType:    "guardian",
		RetentionDays: 90,
		Strategy:      retention.StrategyDelete,
		Active:        true,
		UpdatedAt:     time.Now().UTC(),
	})
	s.Require().NoError(err)

	s.Require().NoError(s.rules.Delete(ctx, id))
	s.Require().ErrorIs(s.rules.Delete(ctx, id), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListTenantsReturnsOnlyActiveRules() {
	ctx := context.Background()

	_, err := s.rules.Upsert(ctx, retention.Rule{
		TenantID: "tenant-a", EntityType: "student", RetentionDays: 30,
		Strategy: retention.StrategyArchive, Active: true, UpdatedAt: time.Now().UTC(),
	})
	s.Require().NoError(err)
	_, err = s.rules.Upsert(ctx, retention.Rule{
		TenantID: "tenant-b", EntityType: "student", RetentionDays: 30,
		Strategy: retention.StrategyArchive, Active: false, UpdatedAt: time.Now().UTC(),
	})
	s.Require().NoError(err)

	tenants, err := s.rules.ListTenants(ctx)
	s.Require().NoError(err)
	s.Equal([]string{"tenant-a"}, tenants)
}

func (s *PostgresStoreSuite) TestLogInsertAndList() {
	ctx := context.Background()
	now := time.Now().UTC()

	entry := retention.LogEntry{
		ID:                uuid.NewString(),
		TenantID:          "tenant-1",
		RuleID:            "rule-1",
		EntityType:        "student",
		EntityID:          "student-1",
		Action:            retention.ActionAnonymized,
		FieldsAnonymized:  []string{"email"},
		OriginalCreatedAt: now.Add(-400 * 24 * time.Hour),
		ProcessedAt:       now,
	}
	s.Require().NoError(s.logs.Insert(ctx, entry))

	entries, err := s.logs.List(ctx, retention.LogFilter{TenantID: "tenant-1", Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(entry.ID, entries[0].ID)
	s.Equal(retention.ActionAnonymized, entries[0].Action)
	s.Equal([]string{"email"}, entries[0].FieldsAnonymized)

	none, err := s.logs.List(ctx, retention.LogFilter{
		TenantID: "tenant-1", RuleID: "rule-2", Limit: 10,
	})
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *PostgresStoreSuite) insertStudent(id, tenantID string, createdAt time.Time) {
	_, err := s.postgres.DB.Exec(`
		INSERT INTO students (id, tenant_id, full_name, email, created_at, updated_at)
		VALUES ($1, $2, 'Student ' || $1, $1 || '@example.com', $3, $3)`,
		id, tenantID, createdAt)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestListExpiredSkipsYoungAndArchived() {
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-365 * 24 * time.Hour)

	s.insertStudent("old-1", "tenant-1", cutoff.Add(-24*time.Hour))
	s.insertStudent("old-2", "tenant-1", cutoff.Add(-48*time.Hour))
	s.insertStudent("young", "tenant-1", cutoff.Add(24*time.Hour))
	s.insertStudent("other-tenant", "tenant-2", cutoff.Add(-24*time.Hour))

	s.Require().NoError(s.entities.Archive(ctx, "tenant-1", "student", "old-2"))

	candidates, err := s.entities.ListExpired(ctx, "tenant-1", "student", cutoff)
	s.Require().NoError(err)
	s.Require().Len(candidates, 1)
	s.Equal("old-1", candidates[0].ID)
}

func (s *PostgresStoreSuite) TestDeleteRemovesEntity() {
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-30 * 24 * time.Hour)

	s.insertStudent("doomed", "tenant-1", cutoff.Add(-24*time.Hour))
	s.Require().NoError(s.entities.Delete(ctx, "tenant-1", "student", "doomed"))

	var count int
	err := s.postgres.DB.QueryRow(`SELECT COUNT(*) FROM students`).Scan(&count)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *PostgresStoreSuite) TestUnknownEntityTypeRejectedBeforeSQL() {
	ctx := context.Background()

	_, err := s.entities.ListExpired(ctx, "tenant-1", "invoice", time.Now())
	s.Require().Error(err)

	s.Require().Error(s.entities.Delete(ctx, "tenant-1", "invoice", "x"))
	s.Require().Error(s.entities.Archive(ctx, "tenant-1", "invoice", "x"))
}
