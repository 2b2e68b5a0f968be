package sla

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler runs the breach sweep on a fixed interval. One instance is owned
// by main; operators can additionally trigger sweeps through the system
// endpoint and the two paths coexist because sweeps are idempotent.
type Scheduler struct {
	detector *Detector
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(detector *Detector, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval == 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{detector: detector, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled. The first sweep fires after one full
// interval so process start-up storms don't stampede the store.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "sla scheduler started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sla scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.detector.RunSweep(ctx); err != nil {
				s.logger.ErrorContext(ctx, "scheduled sweep failed", "error", err)
			}
		}
	}
}
