package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"peicollab/internal/retention"
	"peicollab/pkg/requestcontext"
)

func (h *Handler) handleUpsertRetentionRule(w http.ResponseWriter, r *http.Request) {
	var rule retention.Rule
	if err := decode(r, &rule); err != nil {
		writeError(w, err)
		return
	}
	rule.TenantID = requestcontext.TenantID(r.Context())

	id, err := h.retention.UpsertRule(r.Context(), rule)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) handleGetRetentionRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.retention.GetRules(r.Context(), requestcontext.TenantID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	if rules == nil {
		rules = []retention.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (h *Handler) handleToggleRetentionRule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Active bool `json:"active"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := h.retention.SetRuleActive(r.Context(), chi.URLParam(r, "id"), body.Active); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": body.Active})
}

func (h *Handler) handleDeleteRetentionRule(w http.ResponseWriter, r *http.Request) {
	if err := h.retention.DeleteRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleApplyRetention runs the tenant's rules on demand. dry_run=true
// previews the impact without mutating anything.
func (h *Handler) handleApplyRetention(w http.ResponseWriter, r *http.Request) {
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))

	result, err := h.retention.ApplyRules(r.Context(), requestcontext.TenantID(r.Context()), dryRun)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetRetentionLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := retention.LogFilter{
		TenantID:   requestcontext.TenantID(r.Context()),
		RuleID:     q.Get("rule_id"),
		EntityType: q.Get("entity_type"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	logs, err := h.retention.GetLogs(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if logs == nil {
		logs = []retention.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
