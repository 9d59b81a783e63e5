// Package consent implements the per-subject, per-purpose consent ledger.
// Grants and revocations are audited; consent checks are pure reads.
package consent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"peicollab/internal/audit"
	dErrors "peicollab/pkg/domain-errors"
	"peicollab/pkg/platform/sentinel"
	"peicollab/pkg/requestcontext"
)

// Ledger records consent grants and revocations.
type Ledger struct {
	store    Store
	recorder audit.Recorder
	logger   *slog.Logger
	clock    func() time.Time
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) LedgerOption {
	return func(l *Ledger) { l.clock = clock }
}

func NewLedger(store Store, recorder audit.Recorder, logger *slog.Logger, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:    store,
		recorder: recorder,
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Grant records a new active consent for the purpose+subject pair and returns
// its id. Always creates a new record; prior grants are left untouched. Client
// IP and user agent are captured from the request context when present.
func (l *Ledger) Grant(ctx context.Context, tenantID string, purpose Purpose, subject SubjectRef, metadata map[string]any) (string, error) {
	tenantID, err := l.validate(ctx, tenantID, purpose, subject)
	if err != nil {
		return "", err
	}

	now := l.clock().UTC()
	record := Record{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Subject:   subject,
		Purpose:   purpose,
		Granted:   true,
		GrantedAt: now,
		Metadata:  metadata,
		IPAddress: requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.store.Insert(ctx, record); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "grant consent")
	}

	l.recorder.Log(ctx, audit.Entry{
		TenantID:   tenantID,
		EntityType: audit.EntityConsent,
		EntityID:   record.ID,
		Action:     audit.ActionInsert,
		Metadata: map[string]any{
			"consent_type": purpose,
			"source":       "grant_consent",
			"user_id":      subject.UserID,
			"student_id":   subject.StudentID,
			"guardian_id":  subject.GuardianID,
		},
	})
	return record.ID, nil
}

// Revoke marks the active consent for the purpose+subject pair as revoked.
// Returns false without writing anything when no active consent exists;
// revoking twice is a no-op, not an error, and leaves no second audit event.
func (l *Ledger) Revoke(ctx context.Context, tenantID string, purpose Purpose, subject SubjectRef, reason string) (bool, error) {
	tenantID, err := l.validate(ctx, tenantID, purpose, subject)
	if err != nil {
		return false, err
	}

	active, err := l.store.FindActive(ctx, tenantID, purpose, subject)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "find active consent")
	}

	revokedAt := l.clock().UTC()
	if err := l.store.MarkRevoked(ctx, active.ID, revokedAt, reason); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Lost the race with a concurrent revoke.
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "revoke consent")
	}

	description := fmt.Sprintf("consent %s revoked", purpose)
	if reason != "" {
		description += ": " + reason
	}
	l.recorder.Log(ctx, audit.Entry{
		TenantID:   tenantID,
		EntityType: audit.EntityConsent,
		EntityID:   active.ID,
		Action:     audit.ActionUpdate,
		Metadata: map[string]any{
			"old_values":  map[string]any{"granted": true, "granted_at": active.GrantedAt},
			"new_values":  map[string]any{"granted": false, "revoked_at": revokedAt},
			"description": description,
		},
	})
	return true, nil
}

// Check reports whether an active consent exists. Pure read, never audited.
func (l *Ledger) Check(ctx context.Context, tenantID string, purpose Purpose, subject SubjectRef) (bool, error) {
	tenantID, err := l.validate(ctx, tenantID, purpose, subject)
	if err != nil {
		return false, err
	}

	_, err = l.store.FindActive(ctx, tenantID, purpose, subject)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "check consent")
	}
	return true, nil
}

// ListAll returns the subject's full consent history, most recent grant first.
func (l *Ledger) ListAll(ctx context.Context, tenantID string, subject SubjectRef) ([]UserConsent, error) {
	if tenantID == "" {
		tenantID = requestcontext.TenantID(ctx)
	}
	if tenantID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	if !subject.Valid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "exactly one subject reference must be set")
	}

	records, err := l.store.ListBySubject(ctx, tenantID, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list consents")
	}

	out := make([]UserConsent, 0, len(records))
	for _, record := range records {
		out = append(out, UserConsent{
			Purpose:   record.Purpose,
			Granted:   record.Granted,
			GrantedAt: record.GrantedAt,
			RevokedAt: record.RevokedAt,
			Metadata:  record.Metadata,
		})
	}
	return out, nil
}

func (l *Ledger) validate(ctx context.Context, tenantID string, purpose Purpose, subject SubjectRef) (string, error) {
	if tenantID == "" {
		tenantID = requestcontext.TenantID(ctx)
	}
	if tenantID == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	if !purpose.Valid() {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown consent purpose %q", purpose)
	}
	if !subject.Valid() {
		return "", dErrors.New(dErrors.CodeBadRequest, "exactly one subject reference must be set")
	}
	return tenantID, nil
}
