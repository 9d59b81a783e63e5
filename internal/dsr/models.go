package dsr

import (
	"time"

	"peicollab/internal/privacy"
)

// RequestType is the closed set of data-subject rights a request can invoke.
type RequestType string

const (
	TypeAccess        RequestType = "access"
	TypeRectification RequestType = "rectification"
	TypeDeletion      RequestType = "deletion"
	TypePortability   RequestType = "portability"
	TypeOpposition    RequestType = "opposition"
	TypeRestriction   RequestType = "restriction"
)

func (t RequestType) Valid() bool {
	switch t {
	case TypeAccess, TypeRectification, TypeDeletion, TypePortability, TypeOpposition, TypeRestriction:
		return true
	}
	return false
}

// Automatable reports whether ProcessRequest can resolve the request without
// human judgment. The remaining types are routed to manual handling.
func (t RequestType) Automatable() bool {
	switch t {
	case TypeAccess, TypePortability, TypeDeletion:
		return true
	}
	return false
}

// Status is the request's position in the workflow state machine.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// transitions holds the legal forward moves of the state machine. Every
// status change goes through UpdateRequestStatus, which consults this table.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusRejected, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusRejected, StatusCancelled},
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Request is one data-subject-rights request. Kept indefinitely as its own
// compliance record once terminal.
type Request struct {
	ID                string              `json:"id"`
	TenantID          string              `json:"tenant_id"`
	SubjectID         string              `json:"subject_id"`
	SubjectType       privacy.SubjectType `json:"subject_type"`
	RequestType       RequestType         `json:"request_type"`
	Status            Status              `json:"status"`
	RequestedBy       string              `json:"requested_by"`
	RequestorDocument string              `json:"requestor_document,omitempty"`
	RequestorEmail    string              `json:"requestor_email,omitempty"`
	RequestorPhone    string              `json:"requestor_phone,omitempty"`
	Description       string              `json:"description"`
	AssignedTo        string              `json:"assigned_to,omitempty"`
	ResponseData      map[string]any      `json:"response_data,omitempty"`
	ResponseDate      *time.Time          `json:"response_date,omitempty"`
	RejectionReason   string              `json:"rejection_reason,omitempty"`
	Metadata          map[string]any      `json:"metadata,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Filter narrows GetRequests reads. TenantID is required.
type Filter struct {
	TenantID    string
	SubjectID   string
	SubjectType privacy.SubjectType
	RequestType RequestType
	Status      Status
	Limit       int
}
