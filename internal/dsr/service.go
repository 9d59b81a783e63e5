// Package dsr implements the data-subject-rights workflow: a strict forward
// state machine over requests, with automated processing for the access,
// portability and deletion types and manual routing for everything else.
package dsr

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"peicollab/internal/audit"
	"peicollab/internal/privacy"
	dErrors "peicollab/pkg/domain-errors"
	"peicollab/pkg/platform/sentinel"
	"peicollab/pkg/requestcontext"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Counters is the subset of platform metrics the workflow increments.
type Counters interface {
	ProcessedInc(requestType, outcome string)
}

// CreateParams carries everything needed to open a new request.
type CreateParams struct {
	TenantID          string
	SubjectID         string
	SubjectType       privacy.SubjectType
	RequestType       RequestType
	RequestedBy       string
	RequestorDocument string
	RequestorEmail    string
	RequestorPhone    string
	Description       string
	Metadata          map[string]any
}

// UpdateOptions carries the optional fields of a manual status transition.
type UpdateOptions struct {
	ResponseData    map[string]any
	RejectionReason string
	AssignedTo      string
}

// ProcessResult is the outcome of an automated ProcessRequest run.
type ProcessResult struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// Service runs the DSR workflow.
type Service struct {
	store      Store
	exporter   privacy.Exporter
	anonymizer privacy.Anonymizer
	recorder   audit.Recorder
	logger     *slog.Logger
	counters   Counters
	clock      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCounters wires workflow metrics.
func WithCounters(counters Counters) ServiceOption {
	return func(s *Service) { s.counters = counters }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) { s.clock = clock }
}

func NewService(store Store, exporter privacy.Exporter, anonymizer privacy.Anonymizer, recorder audit.Recorder, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		exporter:   exporter,
		anonymizer: anonymizer,
		recorder:   recorder,
		logger:     logger,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest opens a new request in pending status and returns its id.
func (s *Service) CreateRequest(ctx context.Context, params CreateParams) (string, error) {
	if params.TenantID == "" {
		params.TenantID = requestcontext.TenantID(ctx)
	}
	switch {
	case params.TenantID == "":
		return "", dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	case params.SubjectID == "":
		return "", dErrors.New(dErrors.CodeBadRequest, "subject id is required")
	case !params.SubjectType.Valid():
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown subject type %q", params.SubjectType)
	case !params.RequestType.Valid():
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown request type %q", params.RequestType)
	case params.RequestedBy == "":
		return "", dErrors.New(dErrors.CodeBadRequest, "requested_by is required")
	}

	now := s.clock().UTC()
	request := Request{
		ID:                uuid.NewString(),
		TenantID:          params.TenantID,
		SubjectID:         params.SubjectID,
		SubjectType:       params.SubjectType,
		RequestType:       params.RequestType,
		Status:            StatusPending,
		RequestedBy:       params.RequestedBy,
		RequestorDocument: params.RequestorDocument,
		RequestorEmail:    params.RequestorEmail,
		RequestorPhone:    params.RequestorPhone,
		Description:       params.Description,
		Metadata:          params.Metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Insert(ctx, request); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "create dsr request")
	}

	s.recorder.Log(ctx, audit.Entry{
		TenantID:   request.TenantID,
		EntityType: audit.EntityDSRRequest,
		EntityID:   request.ID,
		Action:     audit.ActionInsert,
		Metadata: map[string]any{
			"request_type": request.RequestType,
			"subject_id":   request.SubjectID,
			"subject_type": request.SubjectType,
		},
	})
	return request.ID, nil
}

// GetRequest is a direct keyed read.
func (s *Service) GetRequest(ctx context.Context, tenantID, id string) (*Request, error) {
	request, err := s.store.Get(ctx, tenantID, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "dsr request not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get dsr request")
	}
	return request, nil
}

// GetRequests lists requests matching the filter, most recent first.
func (s *Service) GetRequests(ctx context.Context, filter Filter) ([]Request, error) {
	if filter.TenantID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant id is required")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	requests, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list dsr requests")
	}
	return requests, nil
}

// UpdateRequestStatus is the single chokepoint for every status change,
// manual or automated. Out-of-order transitions are rejected; completing or
// cancelling an already-terminal request is an error, not a no-op.
func (s *Service) UpdateRequestStatus(ctx context.Context, tenantID, id string, status Status, opts UpdateOptions) error {
	if !status.Valid() {
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown status %q", status)
	}
	if status == StatusCompleted && opts.RejectionReason != "" {
		return dErrors.New(dErrors.CodeBadRequest, "a completed request cannot carry a rejection reason")
	}
	if status == StatusRejected && opts.ResponseData != nil {
		return dErrors.New(dErrors.CodeBadRequest, "a rejected request cannot carry response data")
	}

	request, err := s.GetRequest(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !request.Status.CanTransitionTo(status) {
		return dErrors.Newf(dErrors.CodeInvalidState,
			"illegal dsr transition %s -> %s", request.Status, status)
	}

	if err := s.store.UpdateStatus(ctx, id, status, StatusUpdate{
		ResponseData:    opts.ResponseData,
		RejectionReason: opts.RejectionReason,
		AssignedTo:      opts.AssignedTo,
		UpdatedAt:       s.clock().UTC(),
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update dsr request status")
	}

	s.recorder.Log(ctx, audit.Entry{
		TenantID:   tenantID,
		EntityType: audit.EntityDSRRequest,
		EntityID:   id,
		Action:     audit.ActionUpdate,
		Metadata: map[string]any{
			"old_status": request.Status,
			"new_status": status,
		},
	})
	return nil
}

// ProcessRequest runs the automated resolution for a pending request.
// Access and portability attach an export bundle; deletion attaches an
// anonymization result. The remaining types need human judgment: processing
// them fails, and per the workflow contract any failure after the request
// entered in_progress moves it to rejected with the error recorded, then the
// error is returned to the caller.
func (s *Service) ProcessRequest(ctx context.Context, tenantID, id string) (*ProcessResult, error) {
	request, err := s.GetRequest(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if request.Status != StatusPending {
		return nil, dErrors.Newf(dErrors.CodeInvalidState,
			"dsr request is %s, only pending requests can be processed", request.Status)
	}

	if err := s.UpdateRequestStatus(ctx, tenantID, id, StatusInProgress, UpdateOptions{}); err != nil {
		return nil, err
	}

	result, err := s.resolve(ctx, request)
	if err != nil {
		s.reject(ctx, tenantID, id, err)
		s.processedInc(request.RequestType, "rejected")
		return nil, err
	}

	s.processedInc(request.RequestType, "completed")
	return result, nil
}

func (s *Service) resolve(ctx context.Context, request *Request) (*ProcessResult, error) {
	switch request.RequestType {
	case TypeAccess, TypePortability:
		bundle, err := s.exporter.ExportPersonalData(ctx, request.TenantID, request.SubjectID, request.SubjectType)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "export personal data")
		}
		now := s.clock().UTC()
		if err := s.UpdateRequestStatus(ctx, request.TenantID, request.ID, StatusCompleted, UpdateOptions{
			ResponseData: map[string]any{
				"export_data": bundle,
				"exported_at": now,
			},
		}); err != nil {
			return nil, err
		}
		s.recorder.Log(ctx, audit.Entry{
			TenantID:   request.TenantID,
			EntityType: subjectEntity(request.SubjectType),
			EntityID:   request.SubjectID,
			Action:     audit.ActionExport,
			Metadata:   map[string]any{"dsr_request_id": request.ID, "request_type": request.RequestType},
		})
		return &ProcessResult{Success: true, Data: bundle}, nil

	case TypeDeletion:
		reason := request.Description
		if reason == "" {
			reason = "data deletion requested via DSR"
		}
		result, err := s.anonymizer.AnonymizePersonalData(ctx, request.TenantID, request.SubjectID,
			request.SubjectType, reason, request.RequestedBy, nil)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "anonymize personal data")
		}
		now := s.clock().UTC()
		if err := s.UpdateRequestStatus(ctx, request.TenantID, request.ID, StatusCompleted, UpdateOptions{
			ResponseData: map[string]any{
				"anonymization_result": result,
				"anonymized_at":        now,
			},
		}); err != nil {
			return nil, err
		}
		s.recorder.Log(ctx, audit.Entry{
			TenantID:   request.TenantID,
			EntityType: subjectEntity(request.SubjectType),
			EntityID:   request.SubjectID,
			Action:     audit.ActionAnonymize,
			Metadata:   map[string]any{"dsr_request_id": request.ID, "anonymization_id": result.AnonymizationID},
		})
		return &ProcessResult{Success: true, Data: result}, nil

	default:
		return nil, dErrors.Newf(dErrors.CodeUnsupported,
			"request type %s requires manual processing", request.RequestType)
	}
}

// reject is best-effort: a failure to record the rejection must not mask the
// processing error being returned to the caller.
func (s *Service) reject(ctx context.Context, tenantID, id string, cause error) {
	err := s.UpdateRequestStatus(ctx, tenantID, id, StatusRejected, UpdateOptions{
		RejectionReason: cause.Error(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mark dsr request rejected",
			"dsr_request_id", id,
			"error", err,
			"cause", cause,
		)
	}
}

func (s *Service) processedInc(requestType RequestType, outcome string) {
	if s.counters != nil {
		s.counters.ProcessedInc(string(requestType), outcome)
	}
}

func subjectEntity(subjectType privacy.SubjectType) audit.EntityType {
	switch subjectType {
	case privacy.SubjectStudent:
		return audit.EntityStudent
	case privacy.SubjectGuardian:
		return audit.EntityGuardian
	case privacy.SubjectProfessional:
		return audit.EntityProfessional
	default:
		return audit.EntityUser
	}
}
