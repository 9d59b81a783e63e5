package consent

import (
	"context"
	"sort"
	"sync"
	"time"

	"peicollab/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Insert(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return nil
}

func (s *MemoryStore) FindActive(_ context.Context, tenantID string, purpose Purpose, subject SubjectRef) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *Record
	for _, record := range s.records {
		if record.TenantID != tenantID || record.Purpose != purpose || record.Subject != subject {
			continue
		}
		if !record.Granted || record.RevokedAt != nil {
			continue
		}
		if found == nil || record.GrantedAt.After(found.GrantedAt) {
			r := record
			found = &r
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return found, nil
}

func (s *MemoryStore) MarkRevoked(_ context.Context, id string, revokedAt time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok || record.RevokedAt != nil {
		return sentinel.ErrNotFound
	}
	record.Granted = false
	record.RevokedAt = &revokedAt
	record.RevokeReason = reason
	record.UpdatedAt = revokedAt
	s.records[id] = record
	return nil
}

func (s *MemoryStore) ListBySubject(_ context.Context, tenantID string, subject SubjectRef) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, record := range s.records {
		if record.TenantID == tenantID && record.Subject == subject {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].GrantedAt.After(out[j].GrantedAt)
	})
	return out, nil
}
