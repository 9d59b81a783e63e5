package dsr

import (
	"context"
	"sort"
	"sync"

	"peicollab/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]Request
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]Request)}
}

func (s *MemoryStore) Insert(_ context.Context, request Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[request.ID] = request
	return nil
}

func (s *MemoryStore) Get(_ context.Context, tenantID, id string) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[id]
	if !ok || request.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	return &request, nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Request
	for _, request := range s.requests {
		if request.TenantID != filter.TenantID {
			continue
		}
		if filter.SubjectID != "" && request.SubjectID != filter.SubjectID {
			continue
		}
		if filter.SubjectType != "" && request.SubjectType != filter.SubjectType {
			continue
		}
		if filter.RequestType != "" && request.RequestType != filter.RequestType {
			continue
		}
		if filter.Status != "" && request.Status != filter.Status {
			continue
		}
		out = append(out, request)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status Status, update StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	request.Status = status
	request.UpdatedAt = update.UpdatedAt
	if update.ResponseData != nil {
		request.ResponseData = update.ResponseData
		t := update.UpdatedAt
		request.ResponseDate = &t
	}
	if update.RejectionReason != "" {
		request.RejectionReason = update.RejectionReason
	}
	if update.AssignedTo != "" {
		request.AssignedTo = update.AssignedTo
	}
	s.requests[id] = request
	return nil
}
