package core

// scheduler.go runs background maintenance for the task registry.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTaskRetention is how long terminal tasks stay pollable.
const DefaultTaskRetention = time.Hour

// RunTaskJanitor drops terminal tasks older than retention every interval
// until ctx is cancelled.
func (s *Service) RunTaskJanitor(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if retention <= 0 {
		retention = DefaultTaskRetention
	}
	slog.Info("task janitor started", "interval", interval, "retention", retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("task janitor stopped")
			return
		case <-ticker.C:
			s.sweepTasks(retention)
		}
	}
}

func (s *Service) sweepTasks(retention time.Duration) int {
	removed := s.tasks.sweep(s.now().Add(-retention))
	if removed > 0 {
		slog.Debug("expired tasks removed", "removed", removed, "retained", s.tasks.len())
	}
	return removed
}
