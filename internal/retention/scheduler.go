package retention

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// TenantLister yields the tenants a sweep should visit.
type TenantLister interface {
	ListTenants(ctx context.Context) ([]string, error)
}

// Scheduler runs a live retention sweep across every tenant with active
// rules, on a fixed interval.
type Scheduler struct {
	engine   *Engine
	tenants  TenantLister
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(engine *Engine, rules RuleStore, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{engine: engine, tenants: rules, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled. Sweep failures are logged and the loop
// keeps going; the next tick retries everything.
func (s *Scheduler) Run(ctx context.Context) {
	// A random initial delay keeps replicas from sweeping in lockstep.
	jitter := time.Duration(rand.Int64N(int64(s.interval)))
	select {
	case <-ctx.Done():
		return
	case <-time.After(jitter):
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "retention scheduler started", "interval", s.interval.String())
	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "retention scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "retention sweep failed to list tenants", "error", err)
		return
	}
	for _, tenantID := range tenants {
		result, err := s.engine.ApplyRules(ctx, tenantID, false)
		if err != nil {
			s.logger.ErrorContext(ctx, "retention sweep failed", "tenant_id", tenantID, "error", err)
			continue
		}
		if len(result.Errors) > 0 {
			s.logger.WarnContext(ctx, "retention sweep finished with errors",
				"tenant_id", tenantID, "errors", len(result.Errors))
		}
	}
}
