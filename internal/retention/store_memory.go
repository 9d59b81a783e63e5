package retention

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"peicollab/pkg/platform/sentinel"
)

// MemoryRuleStore is an in-memory RuleStore for tests.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{rules: make(map[string]Rule)}
}

func (s *MemoryRuleStore) Upsert(_ context.Context, rule Rule) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.rules {
		if existing.TenantID == rule.TenantID && existing.EntityType == rule.EntityType {
			rule.ID = id
			rule.CreatedAt = existing.CreatedAt
			s.rules[id] = rule
			return id, nil
		}
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	s.rules[rule.ID] = rule
	return rule.ID, nil
}

func (s *MemoryRuleStore) List(_ context.Context, tenantID string) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Rule
	for _, rule := range s.rules {
		if rule.TenantID == tenantID {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityType < out[j].EntityType })
	return out, nil
}

func (s *MemoryRuleStore) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	rule.Active = active
	s.rules[id] = rule
	return nil
}

func (s *MemoryRuleStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *MemoryRuleStore) ListTenants(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var tenants []string
	for _, rule := range s.rules {
		if !rule.Active {
			continue
		}
		if _, ok := seen[rule.TenantID]; ok {
			continue
		}
		seen[rule.TenantID] = struct{}{}
		tenants = append(tenants, rule.TenantID)
	}
	sort.Strings(tenants)
	return tenants, nil
}

// MemoryLogStore is an in-memory LogStore for tests.
type MemoryLogStore struct {
	mu      sync.RWMutex
	entries []LogEntry
}

func NewMemoryLogStore() *MemoryLogStore {
	return &MemoryLogStore{}
}

func (s *MemoryLogStore) Insert(_ context.Context, entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryLogStore) List(_ context.Context, filter LogFilter) ([]LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []LogEntry
	for _, entry := range s.entries {
		if entry.TenantID != filter.TenantID {
			continue
		}
		if filter.RuleID != "" && entry.RuleID != filter.RuleID {
			continue
		}
		if filter.EntityType != "" && entry.EntityType != filter.EntityType {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProcessedAt.After(out[j].ProcessedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type memoryEntity struct {
	id        string
	tenantID  string
	kind      string
	createdAt time.Time
	archived  bool
}

// MemoryEntityStore is an in-memory EntityStore for tests.
type MemoryEntityStore struct {
	mu       sync.RWMutex
	entities map[string]memoryEntity
}

func NewMemoryEntityStore() *MemoryEntityStore {
	return &MemoryEntityStore{entities: make(map[string]memoryEntity)}
}

// Seed registers an entity for candidate queries.
func (s *MemoryEntityStore) Seed(tenantID, entityType, id string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[id] = memoryEntity{id: id, tenantID: tenantID, kind: entityType, createdAt: createdAt}
}

func (s *MemoryEntityStore) ListExpired(_ context.Context, tenantID, entityType string, olderThan time.Time) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Candidate
	for _, e := range s.entities {
		if e.tenantID != tenantID || e.kind != entityType || e.archived {
			continue
		}
		if !e.createdAt.Before(olderThan) {
			continue
		}
		out = append(out, Candidate{ID: e.id, CreatedAt: e.createdAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryEntityStore) Delete(_ context.Context, tenantID, entityType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok || e.tenantID != tenantID || e.kind != entityType {
		return sentinel.ErrNotFound
	}
	delete(s.entities, id)
	return nil
}

func (s *MemoryEntityStore) Archive(_ context.Context, tenantID, entityType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok || e.tenantID != tenantID || e.kind != entityType {
		return sentinel.ErrNotFound
	}
	e.archived = true
	s.entities[id] = e
	return nil
}

// Exists reports whether the entity is still present (not deleted).
func (s *MemoryEntityStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entities[id]
	return ok
}

// Archived reports whether the entity has been archived.
func (s *MemoryEntityStore) Archived(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	return ok && e.archived
}
