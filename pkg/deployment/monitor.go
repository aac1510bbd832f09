package deployment

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

const healthProbeSchedule = "@every 30s"

// Monitor periodically probes engine and store health and caches the latest
// snapshot so the health endpoint stays cheap under load.
type Monitor struct {
	orchestrator *Orchestrator
	cron         *cron.Cron
	logger       *slog.Logger

	mu       sync.RWMutex
	snapshot *HealthCheckResult
}

func NewMonitor(orchestrator *Orchestrator, logger *slog.Logger) *Monitor {
	return &Monitor{
		orchestrator: orchestrator,
		cron:         cron.New(),
		logger:       logger.With("module", "deployment.monitor"),
	}
}

// Start probes once immediately, then on the fixed schedule.
func (m *Monitor) Start(ctx context.Context) error {
	m.probe(ctx)

	_, err := m.cron.AddFunc(healthProbeSchedule, func() {
		m.probe(ctx)
	})
	if err != nil {
		return err
	}

	m.cron.Start()

	return nil
}

// Stop halts the schedule and waits for an in-flight probe to finish.
func (m *Monitor) Stop() {
	stopCtx := m.cron.Stop()
	<-stopCtx.Done()
}

// Snapshot returns the most recent health result, or nil before the first
// probe completes.
func (m *Monitor) Snapshot() *HealthCheckResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshot
}

func (m *Monitor) probe(ctx context.Context) {
	result := m.orchestrator.Health(ctx)

	m.mu.Lock()
	m.snapshot = result
	m.mu.Unlock()

	if !result.Healthy {
		m.logger.WarnContext(ctx, "health probe degraded",
			"engine_healthy", result.EngineHealthy,
			"store_healthy", result.StoreHealthy,
		)
	}
}
