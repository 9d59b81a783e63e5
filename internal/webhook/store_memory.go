package webhook

import (
	"context"
	"sort"
	"sync"

	"peicollab/internal/events"
	"peicollab/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu         sync.RWMutex
	configs    map[string]Config
	deliveries []DeliveryLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{configs: make(map[string]Config)}
}

func (s *MemoryStore) Upsert(_ context.Context, config Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[config.ID] = config
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.configs, id)
	return nil
}

func (s *MemoryStore) ListByTenant(_ context.Context, tenantID string) ([]Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Config
	for _, config := range s.configs {
		if config.TenantID == tenantID {
			out = append(out, config)
		}
	}
	sortConfigs(out)
	return out, nil
}

func (s *MemoryStore) ListForEvent(_ context.Context, tenantID string, eventType events.Type) ([]Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Config
	for _, config := range s.configs {
		if !config.Enabled || !config.Subscribed(eventType) {
			continue
		}
		if config.TenantID != "" && config.TenantID != tenantID {
			continue
		}
		out = append(out, config)
	}
	sortConfigs(out)
	return out, nil
}

func (s *MemoryStore) LogDelivery(_ context.Context, log DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, log)
	return nil
}

func (s *MemoryStore) ListDeliveries(_ context.Context, webhookID string, limit int) ([]DeliveryLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []DeliveryLog
	for i := len(s.deliveries) - 1; i >= 0; i-- {
		if s.deliveries[i].WebhookID != webhookID {
			continue
		}
		out = append(out, s.deliveries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func sortConfigs(configs []Config) {
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].CreatedAt.Before(configs[j].CreatedAt)
	})
}
