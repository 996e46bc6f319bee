package probe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// HealthRecorder receives the outcome of each scheduled probe.
// *metrics.Collector implements it.
type HealthRecorder interface {
	SetProviderUp(up bool)
}

// Scheduler runs Check on a cron schedule and keeps the latest report.
// Each run costs one small provider request.
type Scheduler struct {
	probe    *Probe
	schedule string
	recorder HealthRecorder
	cron     *cron.Cron
	last     atomic.Pointer[Report]
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler. schedule accepts standard cron
// expressions and descriptors such as "@every 5m".
func NewScheduler(p *Probe, schedule string, recorder HealthRecorder, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		probe:    p,
		schedule: schedule,
		recorder: recorder,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start schedules the probe. An empty schedule does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("Probe schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid probe schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule probe: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Probe scheduler started", zap.String("schedule", s.schedule))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// RunOnce probes immediately and records the result
func (s *Scheduler) RunOnce(ctx context.Context) Report {
	report := s.probe.Check(ctx)
	s.last.Store(&report)
	if s.recorder != nil {
		s.recorder.SetProviderUp(report.APIConfigured)
	}
	if !report.APIConfigured {
		fields := []zap.Field{zap.Bool("has_api_key", report.HasAPIKey)}
		if report.ConnectionStatus != nil {
			fields = append(fields, zap.Int("status", *report.ConnectionStatus))
		}
		s.logger.Warn("Scheduled probe: provider not usable", fields...)
	}
	return report
}

// Last returns the most recent report, or nil before the first run
func (s *Scheduler) Last() *Report {
	return s.last.Load()
}

// Stop stops the scheduler and waits for a running probe to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("Probe scheduler stopped")
}
