package httptransport

import (
	"net/http"

	"github.com/mssola/useragent"

	"peicollab/internal/consent"
	"peicollab/pkg/requestcontext"
)

type consentRequest struct {
	Purpose  consent.Purpose    `json:"purpose"`
	Subject  consent.SubjectRef `json:"subject"`
	Reason   string             `json:"reason,omitempty"`
	Metadata map[string]any     `json:"metadata,omitempty"`
}

// handleGrantConsent records a new consent grant. The client's browser and OS,
// parsed from the User-Agent, are folded into the grant metadata so consent
// records carry the capture context the regulation asks for.
func (h *Handler) handleGrantConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	metadata := req.Metadata
	if ua := requestcontext.UserAgent(r.Context()); ua != "" {
		parsed := useragent.New(ua)
		name, version := parsed.Browser()
		if metadata == nil {
			metadata = make(map[string]any, 3)
		}
		metadata["browser"] = name
		metadata["browser_version"] = version
		metadata["os"] = parsed.OS()
	}

	id, err := h.consents.Grant(r.Context(), "", req.Purpose, req.Subject, metadata)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// handleRevokeConsent revokes the active consent if one exists. Revoking
// nothing is not an error; the body says whether anything changed.
func (h *Handler) handleRevokeConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	revoked, err := h.consents.Revoke(r.Context(), "", req.Purpose, req.Subject, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": revoked})
}

func subjectFromQuery(r *http.Request) consent.SubjectRef {
	q := r.URL.Query()
	return consent.SubjectRef{
		UserID:     q.Get("user_id"),
		StudentID:  q.Get("student_id"),
		GuardianID: q.Get("guardian_id"),
	}
}

// handleCheckConsent reports whether an active consent exists. Pure read.
func (h *Handler) handleCheckConsent(w http.ResponseWriter, r *http.Request) {
	purpose := consent.Purpose(r.URL.Query().Get("purpose"))
	granted, err := h.consents.Check(r.Context(), "", purpose, subjectFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"granted": granted})
}

// handleListConsents returns the subject's full consent history.
func (h *Handler) handleListConsents(w http.ResponseWriter, r *http.Request) {
	consents, err := h.consents.ListAll(r.Context(), "", subjectFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if consents == nil {
		consents = []consent.UserConsent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"consents": consents})
}
