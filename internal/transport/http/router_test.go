package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peicollab/internal/audit"
	"peicollab/internal/consent"
	"peicollab/internal/events"
	"peicollab/internal/platform/middleware"
	"peicollab/internal/privacy"
	"peicollab/internal/retention"
	"peicollab/internal/webhook"
	"peicollab/pkg/testutil"
)

type noopAnonymizer struct{}

func (noopAnonymizer) AnonymizePersonalData(_ context.Context, tenantID, subjectID string, subjectType privacy.SubjectType, _, _ string, fields []string) (privacy.AnonymizeResult, error) {
	return privacy.AnonymizeResult{
		Success:          true,
		SubjectID:        subjectID,
		SubjectType:      string(subjectType),
		AnonymizedFields: fields,
	}, nil
}

// newFullRouter wires real services over in-memory stores, the same shape
// main assembles in production.
func newFullRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	trail := audit.NewTrail(audit.NewMemoryStore(), logger)
	bus := events.NewBus(trail, logger)
	ledger := consent.NewLedger(consent.NewMemoryStore(), trail, logger)
	dispatcher := webhook.NewDispatcher(webhook.NewMemoryStore(), 0, logger)
	engine := retention.NewEngine(
		retention.NewMemoryRuleStore(),
		retention.NewMemoryLogStore(),
		retention.NewMemoryEntityStore(),
		noopAnonymizer{}, trail, logger,
	)

	h := NewHandler(bus, trail, ledger, nil, engine, dispatcher, logger)
	validator := &staticValidator{claims: middleware.JWTClaims{
		ActorID:  "user-1",
		TenantID: "tenant-1",
		SchoolID: "school-1",
	}}
	return NewRouter(h, validator)
}

func TestRouterSurface(t *testing.T) {
	testutil.Given(t, "the assembled router", func(t *testing.T) {
		router := newFullRouter(t)

		testutil.When(t, "calling GET /healthz without credentials", func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			testutil.Then(t, "it should respond OK", func(t *testing.T) {
				assert.Equal(t, http.StatusOK, rec.Code)
			})
		})

		testutil.When(t, "calling an API route without credentials", func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil))

			testutil.Then(t, "it should respond unauthorized", func(t *testing.T) {
				assert.Equal(t, http.StatusUnauthorized, rec.Code)
			})
		})
	})
}

func TestConsentLifecycleOverHTTP(t *testing.T) {
	router := newFullRouter(t)

	grantBody, _ := json.Marshal(consentRequest{
		Purpose: consent.PurposePhotoVideo,
		Subject: consent.SubjectRef{StudentID: "s1"},
	})
	grantReq := authed(httptest.NewRequest(http.MethodPost, "/api/v1/consents", bytes.NewReader(grantBody)))
	grantReq.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, grantReq)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet,
		"/api/v1/consents/check?purpose=photo_video&student_id=s1", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"granted":true}`, rec.Body.String())

	revokeBody, _ := json.Marshal(consentRequest{
		Purpose: consent.PurposePhotoVideo,
		Subject: consent.SubjectRef{StudentID: "s1"},
		Reason:  "guardian request",
	})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/api/v1/consents/revoke", bytes.NewReader(revokeBody))))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"revoked":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet,
		"/api/v1/consents/check?purpose=photo_video&student_id=s1", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"granted":false}`, rec.Body.String())
}

func TestEmitEventLandsInAuditTrail(t *testing.T) {
	router := newFullRouter(t)

	body, _ := json.Marshal(emitEventRequest{
		Event: events.StudentCreated,
		Data:  map[string]any{"id": "s1"},
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader(body))))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var emitted emitEventResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&emitted))
	assert.NotEmpty(t, emitted.AuditEventID)
	assert.Equal(t, "tenant-1", emitted.Event.TenantID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/audit?entity_type=student", nil)))
	require.Equal(t, http.StatusOK, rec.Code)

	var trailResp struct {
		Events []audit.Event `json:"events"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&trailResp))
	require.Len(t, trailResp.Events, 1)
	assert.Equal(t, "s1", trailResp.Events[0].EntityID)
	assert.Equal(t, audit.ActionInsert, trailResp.Events[0].Action)
}

func TestEmitEventRejectsUnknownType(t *testing.T) {
	router := newFullRouter(t)

	body, _ := json.Marshal(emitEventRequest{Event: "invoice.paid"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader(body))))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetentionRulesOverHTTP(t *testing.T) {
	router := newFullRouter(t)

	ruleBody, _ := json.Marshal(retention.Rule{
		EntityType:    "student",
		RetentionDays: 365,
		Strategy:      retention.StrategyFull,
		Active:        true,
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPut, "/api/v1/retention/rules", bytes.NewReader(ruleBody))))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/api/v1/retention/apply?dry_run=true", nil)))
	require.Equal(t, http.StatusOK, rec.Code)

	var result retention.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.True(t, result.DryRun)
	assert.Equal(t, "tenant-1", result.TenantID)
	assert.Zero(t, result.Total())
}

func TestWebhookValidationOverHTTP(t *testing.T) {
	router := newFullRouter(t)

	body, _ := json.Marshal(webhookRequest{Name: "no url", Events: []events.Type{events.StudentCreated}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/api/v1/webhooks", bytes.NewReader(body))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, _ = json.Marshal(webhookRequest{
		Name:   "records sync",
		URL:    "https://sis.example.com/hooks",
		Events: []events.Type{events.StudentCreated},
	})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/api/v1/webhooks", bytes.NewReader(body))))
	require.Equal(t, http.StatusCreated, rec.Code)

	var saved webhook.Config
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&saved))
	assert.Equal(t, "tenant-1", saved.TenantID)
	assert.NotEmpty(t, saved.ID)
}
