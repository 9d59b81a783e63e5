package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"peicollab/internal/dsr"
	"peicollab/internal/privacy"
	"peicollab/pkg/requestcontext"
)

type createDSRRequest struct {
	SubjectID         string              `json:"subject_id"`
	SubjectType       privacy.SubjectType `json:"subject_type"`
	RequestType       dsr.RequestType     `json:"request_type"`
	RequestorDocument string              `json:"requestor_document,omitempty"`
	RequestorEmail    string              `json:"requestor_email,omitempty"`
	RequestorPhone    string              `json:"requestor_phone,omitempty"`
	Description       string              `json:"description,omitempty"`
	Metadata          map[string]any      `json:"metadata,omitempty"`
}

func (h *Handler) handleCreateDSR(w http.ResponseWriter, r *http.Request) {
	var req createDSRRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	id, err := h.dsr.CreateRequest(r.Context(), dsr.CreateParams{
		SubjectID:         req.SubjectID,
		SubjectType:       req.SubjectType,
		RequestType:       req.RequestType,
		RequestedBy:       requestcontext.ActorID(r.Context()),
		RequestorDocument: req.RequestorDocument,
		RequestorEmail:    req.RequestorEmail,
		RequestorPhone:    req.RequestorPhone,
		Description:       req.Description,
		Metadata:          req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) handleListDSR(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := dsr.Filter{
		TenantID:    requestcontext.TenantID(r.Context()),
		SubjectID:   q.Get("subject_id"),
		SubjectType: privacy.SubjectType(q.Get("subject_type")),
		RequestType: dsr.RequestType(q.Get("request_type")),
		Status:      dsr.Status(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	requests, err := h.dsr.GetRequests(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if requests == nil {
		requests = []dsr.Request{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (h *Handler) handleGetDSR(w http.ResponseWriter, r *http.Request) {
	request, err := h.dsr.GetRequest(r.Context(),
		requestcontext.TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

type updateDSRStatusRequest struct {
	Status          dsr.Status     `json:"status"`
	ResponseData    map[string]any `json:"response_data,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	AssignedTo      string         `json:"assigned_to,omitempty"`
}

func (h *Handler) handleUpdateDSRStatus(w http.ResponseWriter, r *http.Request) {
	var req updateDSRStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	err := h.dsr.UpdateRequestStatus(r.Context(),
		requestcontext.TenantID(r.Context()), chi.URLParam(r, "id"),
		req.Status, dsr.UpdateOptions{
			ResponseData:    req.ResponseData,
			RejectionReason: req.RejectionReason,
			AssignedTo:      req.AssignedTo,
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

func (h *Handler) handleProcessDSR(w http.ResponseWriter, r *http.Request) {
	result, err := h.dsr.ProcessRequest(r.Context(),
		requestcontext.TenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
