package httptransport

import (
	"net/http"

	"peicollab/internal/events"
	dErrors "peicollab/pkg/domain-errors"
)

type emitEventRequest struct {
	Event    events.Type    `json:"event"`
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata"`
}

type emitEventResponse struct {
	Event         events.Event `json:"event"`
	AuditEventID  string       `json:"audit_event_id,omitempty"`
	Broadcast     bool         `json:"broadcast"`
	HandlerErrors []string     `json:"handler_errors,omitempty"`
}

// handleEmitEvent emits a domain event on behalf of the authenticated caller.
// The response always succeeds once the envelope is built; handler failures
// are reported in the body, not the status.
func (h *Handler) handleEmitEvent(w http.ResponseWriter, r *http.Request) {
	var req emitEventRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Event == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "event type is required"))
		return
	}
	if _, ok := events.Classify(req.Event); !ok {
		writeError(w, dErrors.Newf(dErrors.CodeBadRequest, "unknown event type %q", req.Event))
		return
	}

	result := h.emitter.Emit(r.Context(), req.Event, req.Data, req.Metadata)

	resp := emitEventResponse{
		Event:        result.Event,
		AuditEventID: result.AuditEventID,
		Broadcast:    result.Broadcast,
	}
	for _, he := range result.HandlerErrors {
		resp.HandlerErrors = append(resp.HandlerErrors, he.Error())
	}
	writeJSON(w, http.StatusAccepted, resp)
}
