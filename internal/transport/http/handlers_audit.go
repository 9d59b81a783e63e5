package httptransport

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"peicollab/internal/audit"
	"peicollab/pkg/requestcontext"
)

func auditFilterFromQuery(r *http.Request) audit.Filter {
	q := r.URL.Query()
	filter := audit.Filter{
		TenantID:   requestcontext.TenantID(r.Context()),
		EntityType: audit.EntityType(q.Get("entity_type")),
		EntityID:   q.Get("entity_id"),
		Action:     audit.Action(q.Get("action")),
		ActorID:    q.Get("actor_id"),
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = t
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	return filter
}

// handleGetTrail returns the tenant's audit events, most recent first.
func (h *Handler) handleGetTrail(w http.ResponseWriter, r *http.Request) {
	trail, err := h.trail.GetTrail(r.Context(), auditFilterFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if trail == nil {
		trail = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": trail})
}

// handleExportTrail returns the filtered trail as CSV. Buffered so a failed
// export still produces a proper error response instead of a torn body.
func (h *Handler) handleExportTrail(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.trail.ExportCSV(r.Context(), auditFilterFromQuery(r), &buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-trail.csv"`)
	_, _ = w.Write(buf.Bytes())
}
