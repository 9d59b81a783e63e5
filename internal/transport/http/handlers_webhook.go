package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"peicollab/internal/events"
	"peicollab/internal/webhook"
	"peicollab/pkg/requestcontext"
)

type webhookRequest struct {
	Name    string        `json:"name"`
	URL     string        `json:"url"`
	Secret  string        `json:"secret,omitempty"`
	Events  []events.Type `json:"events"`
	Enabled *bool         `json:"enabled,omitempty"`
}

func (r webhookRequest) toConfig(id, tenantID string) webhook.Config {
	config := webhook.Config{
		ID:       id,
		TenantID: tenantID,
		Name:     r.Name,
		URL:      r.URL,
		Secret:   r.Secret,
		Events:   r.Events,
		Enabled:  true,
	}
	if r.Enabled != nil {
		config.Enabled = *r.Enabled
	}
	return config
}

func (h *Handler) handleSaveWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	config, err := h.webhooks.Save(r.Context(), req.toConfig("", requestcontext.TenantID(r.Context())))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, config)
}

func (h *Handler) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	config, err := h.webhooks.Save(r.Context(),
		req.toConfig(chi.URLParam(r, "id"), requestcontext.TenantID(r.Context())))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, config)
}

func (h *Handler) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	configs, err := h.webhooks.List(r.Context(), requestcontext.TenantID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	if configs == nil {
		configs = []webhook.Config{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"webhooks": configs})
}

func (h *Handler) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.webhooks.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWebhookDeliveries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	deliveries, err := h.webhooks.Deliveries(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if deliveries == nil {
		deliveries = []webhook.DeliveryLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": deliveries})
}
