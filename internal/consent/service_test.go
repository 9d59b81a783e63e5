package consent

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peicollab/internal/audit"
	dErrors "peicollab/pkg/domain-errors"
	"peicollab/pkg/requestcontext"
)

func newTestLedger(t *testing.T) (*Ledger, *audit.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	auditStore := audit.NewMemoryStore()
	trail := audit.NewTrail(auditStore, logger)
	ledger := NewLedger(NewMemoryStore(), trail, logger, WithClock(func() time.Time {
		return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	}))
	return ledger, auditStore
}

func auditEvents(t *testing.T, store *audit.MemoryStore, tenantID string) []audit.Event {
	t.Helper()
	events, err := store.List(context.Background(), audit.Filter{TenantID: tenantID})
	require.NoError(t, err)
	return events
}

func TestGrant(t *testing.T) {
	subject := SubjectRef{StudentID: "student-1"}

	t.Run("creates active consent and audits it", func(t *testing.T) {
		ledger, auditStore := newTestLedger(t)

		id, err := ledger.Grant(context.Background(), "tenant-1", PurposePhotoVideo, subject, nil)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		granted, err := ledger.Check(context.Background(), "tenant-1", PurposePhotoVideo, subject)
		require.NoError(t, err)
		assert.True(t, granted)

		events := auditEvents(t, auditStore, "tenant-1")
		require.Len(t, events, 1)
		assert.Equal(t, audit.EntityConsent, events[0].EntityType)
		assert.Equal(t, audit.ActionInsert, events[0].Action)
		assert.Equal(t, id, events[0].EntityID)
		assert.Equal(t, PurposePhotoVideo, events[0].Metadata["consent_type"])
	})

	t.Run("captures client metadata from context", func(t *testing.T) {
		ledger, _ := newTestLedger(t)

		ctx := requestcontext.WithClientMetadata(context.Background(), "203.0.113.7", "Mozilla/5.0")
		id, err := ledger.Grant(ctx, "tenant-1", PurposeCookies, subject, nil)
		require.NoError(t, err)

		records, err := ledger.store.ListBySubject(ctx, "tenant-1", subject)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, id, records[0].ID)
		assert.Equal(t, "203.0.113.7", records[0].IPAddress)
		assert.Equal(t, "Mozilla/5.0", records[0].UserAgent)
	})

	t.Run("rejects unknown purpose", func(t *testing.T) {
		ledger, _ := newTestLedger(t)
		_, err := ledger.Grant(context.Background(), "tenant-1", Purpose("telepathy"), subject, nil)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects ambiguous subject", func(t *testing.T) {
		ledger, _ := newTestLedger(t)
		_, err := ledger.Grant(context.Background(), "tenant-1", PurposeAnalytics,
			SubjectRef{UserID: "u1", StudentID: "s1"}, nil)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects missing tenant", func(t *testing.T) {
		ledger, _ := newTestLedger(t)
		_, err := ledger.Grant(context.Background(), "", PurposeAnalytics, subject, nil)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
	})

	t.Run("falls back to tenant from context", func(t *testing.T) {
		ledger, _ := newTestLedger(t)
		ctx := requestcontext.WithTenantID(context.Background(), "tenant-ctx")
		_, err := ledger.Grant(ctx, "", PurposeAnalytics, subject, nil)
		require.NoError(t, err)
	})
}

func TestRevoke(t *testing.T) {
	subject := SubjectRef{GuardianID: "guardian-1"}

	t.Run("double revoke: first true with one audit event, second false with none", func(t *testing.T) {
		ledger, auditStore := newTestLedger(t)

		_, err := ledger.Grant(context.Background(), "tenant-1", PurposeDataSharing, subject, nil)
		require.NoError(t, err)

		revoked, err := ledger.Revoke(context.Background(), "tenant-1", PurposeDataSharing, subject, "parent request")
		require.NoError(t, err)
		assert.True(t, revoked)

		events := auditEvents(t, auditStore, "tenant-1")
		require.Len(t, events, 2) // one INSERT from grant, one UPDATE from revoke
		assert.Equal(t, audit.ActionUpdate, events[0].Action)

		revoked, err = ledger.Revoke(context.Background(), "tenant-1", PurposeDataSharing, subject, "again")
		require.NoError(t, err)
		assert.False(t, revoked)
		assert.Len(t, auditEvents(t, auditStore, "tenant-1"), 2)
	})

	t.Run("revoke without grant is a no-op", func(t *testing.T) {
		ledger, auditStore := newTestLedger(t)

		revoked, err := ledger.Revoke(context.Background(), "tenant-1", PurposeMarketing, subject, "")
		require.NoError(t, err)
		assert.False(t, revoked)
		assert.Empty(t, auditEvents(t, auditStore, "tenant-1"))
	})

	t.Run("audit captures before and after state", func(t *testing.T) {
		ledger, auditStore := newTestLedger(t)

		_, err := ledger.Grant(context.Background(), "tenant-1", PurposeResearch, subject, nil)
		require.NoError(t, err)
		_, err = ledger.Revoke(context.Background(), "tenant-1", PurposeResearch, subject, "study ended")
		require.NoError(t, err)

		events := auditEvents(t, auditStore, "tenant-1")
		update := events[0]
		oldValues, ok := update.Metadata["old_values"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, oldValues["granted"])
		newValues, ok := update.Metadata["new_values"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, false, newValues["granted"])
		assert.Contains(t, update.Metadata["description"], "study ended")
	})
}

func TestCheckAndListAll(t *testing.T) {
	subject := SubjectRef{UserID: "user-1"}

	t.Run("check is false after revoke", func(t *testing.T) {
		ledger, _ := newTestLedger(t)

		_, err := ledger.Grant(context.Background(), "tenant-1", PurposeAnalytics, subject, nil)
		require.NoError(t, err)
		_, err = ledger.Revoke(context.Background(), "tenant-1", PurposeAnalytics, subject, "")
		require.NoError(t, err)

		granted, err := ledger.Check(context.Background(), "tenant-1", PurposeAnalytics, subject)
		require.NoError(t, err)
		assert.False(t, granted)
	})

	t.Run("new grant after revoke creates a new logical state", func(t *testing.T) {
		ledger, _ := newTestLedger(t)

		first, err := ledger.Grant(context.Background(), "tenant-1", PurposeAnalytics, subject, nil)
		require.NoError(t, err)
		_, err = ledger.Revoke(context.Background(), "tenant-1", PurposeAnalytics, subject, "")
		require.NoError(t, err)
		second, err := ledger.Grant(context.Background(), "tenant-1", PurposeAnalytics, subject, nil)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		granted, err := ledger.Check(context.Background(), "tenant-1", PurposeAnalytics, subject)
		require.NoError(t, err)
		assert.True(t, granted)

		all, err := ledger.ListAll(context.Background(), "tenant-1", subject)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("listAll is scoped to the subject", func(t *testing.T) {
		ledger, _ := newTestLedger(t)

		_, err := ledger.Grant(context.Background(), "tenant-1", PurposeCookies, subject, nil)
		require.NoError(t, err)
		_, err = ledger.Grant(context.Background(), "tenant-1", PurposeCookies, SubjectRef{UserID: "user-2"}, nil)
		require.NoError(t, err)

		all, err := ledger.ListAll(context.Background(), "tenant-1", subject)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, PurposeCookies, all[0].Purpose)
	})
}
