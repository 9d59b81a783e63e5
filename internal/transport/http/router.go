// Package httptransport is the thin HTTP layer over the compliance services.
// Handlers decode, delegate and encode; all business rules live in the
// domain packages.
package httptransport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"peicollab/internal/audit"
	"peicollab/internal/consent"
	"peicollab/internal/dsr"
	"peicollab/internal/events"
	"peicollab/internal/platform/middleware"
	"peicollab/internal/retention"
	"peicollab/internal/webhook"
)

// Emitter is the event entry point exposed over HTTP.
type Emitter interface {
	Emit(ctx context.Context, eventType events.Type, data, metadata map[string]any) events.Result
}

// AuditReader is the read side of the audit trail.
type AuditReader interface {
	GetTrail(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
	ExportCSV(ctx context.Context, filter audit.Filter, w io.Writer) error
}

// ConsentService is the consent ledger surface the handlers call.
type ConsentService interface {
	Grant(ctx context.Context, tenantID string, purpose consent.Purpose, subject consent.SubjectRef, metadata map[string]any) (string, error)
	Revoke(ctx context.Context, tenantID string, purpose consent.Purpose, subject consent.SubjectRef, reason string) (bool, error)
	Check(ctx context.Context, tenantID string, purpose consent.Purpose, subject consent.SubjectRef) (bool, error)
	ListAll(ctx context.Context, tenantID string, subject consent.SubjectRef) ([]consent.UserConsent, error)
}

// DSRService is the data-subject-rights workflow surface.
type DSRService interface {
	CreateRequest(ctx context.Context, params dsr.CreateParams) (string, error)
	GetRequest(ctx context.Context, tenantID, id string) (*dsr.Request, error)
	GetRequests(ctx context.Context, filter dsr.Filter) ([]dsr.Request, error)
	UpdateRequestStatus(ctx context.Context, tenantID, id string, status dsr.Status, opts dsr.UpdateOptions) error
	ProcessRequest(ctx context.Context, tenantID, id string) (*dsr.ProcessResult, error)
}

// RetentionService is the retention engine surface.
type RetentionService interface {
	UpsertRule(ctx context.Context, rule retention.Rule) (string, error)
	GetRules(ctx context.Context, tenantID string) ([]retention.Rule, error)
	SetRuleActive(ctx context.Context, id string, active bool) error
	DeleteRule(ctx context.Context, id string) error
	ApplyRules(ctx context.Context, tenantID string, dryRun bool) (retention.Result, error)
	GetLogs(ctx context.Context, filter retention.LogFilter) ([]retention.LogEntry, error)
}

// WebhookService manages webhook configs and delivery history.
type WebhookService interface {
	Save(ctx context.Context, config webhook.Config) (webhook.Config, error)
	Remove(ctx context.Context, id string) error
	List(ctx context.Context, tenantID string) ([]webhook.Config, error)
	Deliveries(ctx context.Context, webhookID string, limit int) ([]webhook.DeliveryLog, error)
}

// Handler bundles every domain service behind the router.
type Handler struct {
	emitter   Emitter
	trail     AuditReader
	consents  ConsentService
	dsr       DSRService
	retention RetentionService
	webhooks  WebhookService
	logger    *slog.Logger
}

func NewHandler(
	emitter Emitter,
	trail AuditReader,
	consents ConsentService,
	dsrService DSRService,
	retentionService RetentionService,
	webhooks WebhookService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		emitter:   emitter,
		trail:     trail,
		consents:  consents,
		dsr:       dsrService,
		retention: retentionService,
		webhooks:  webhooks,
		logger:    logger,
	}
}

// NewRouter wires the full middleware chain and every endpoint. Health and
// metrics stay outside the auth boundary.
func NewRouter(h *Handler, validator middleware.JWTValidator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.RequireAuth(validator, h.logger))

		api.Post("/events", h.handleEmitEvent)

		api.Get("/audit", h.handleGetTrail)
		api.Get("/audit/export", h.handleExportTrail)

		api.Post("/consents", h.handleGrantConsent)
		api.Post("/consents/revoke", h.handleRevokeConsent)
		api.Get("/consents/check", h.handleCheckConsent)
		api.Get("/consents", h.handleListConsents)

		api.Post("/dsr", h.handleCreateDSR)
		api.Get("/dsr", h.handleListDSR)
		api.Get("/dsr/{id}", h.handleGetDSR)
		api.Patch("/dsr/{id}/status", h.handleUpdateDSRStatus)
		api.Post("/dsr/{id}/process", h.handleProcessDSR)

		api.Put("/retention/rules", h.handleUpsertRetentionRule)
		api.Get("/retention/rules", h.handleGetRetentionRules)
		api.Patch("/retention/rules/{id}/active", h.handleToggleRetentionRule)
		api.Delete("/retention/rules/{id}", h.handleDeleteRetentionRule)
		api.Post("/retention/apply", h.handleApplyRetention)
		api.Get("/retention/logs", h.handleGetRetentionLogs)

		api.Post("/webhooks", h.handleSaveWebhook)
		api.Get("/webhooks", h.handleListWebhooks)
		api.Put("/webhooks/{id}", h.handleUpdateWebhook)
		api.Delete("/webhooks/{id}", h.handleDeleteWebhook)
		api.Get("/webhooks/{id}/deliveries", h.handleWebhookDeliveries)
	})

	return r
}
