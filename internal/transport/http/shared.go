package httptransport

import (
	"encoding/json"
	"net/http"

	dErrors "peicollab/pkg/domain-errors"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError translates a domain error into its HTTP status and a JSON body.
// Internal errors get a generic description so store details never leak.
func writeError(w http.ResponseWriter, err error) {
	status := dErrors.ToHTTPStatus(err)
	description := err.Error()
	if status == http.StatusInternalServerError {
		description = "internal error"
	}
	writeJSON(w, status, errorResponse{
		Error:            string(dErrors.CodeOf(err)),
		ErrorDescription: description,
	})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
