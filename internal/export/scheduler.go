package export

// scheduler.go re-exports the phonebook periodically in serve mode.
//
// It runs immediately on start, then every interval, and stops when the
// context is cancelled. A failed run is logged and recorded; it does not
// stop the scheduler.

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/JonMunkholm/cardbook/internal/core"
)

// Scheduler triggers exports on a fixed interval.
type Scheduler struct {
	service  *Service
	interval time.Duration
}

// NewScheduler creates a scheduler for service.
func NewScheduler(service *Service, interval time.Duration) *Scheduler {
	return &Scheduler{service: service, interval: interval}
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("export scheduler started", "interval", s.interval.String())

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("export scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce performs one scheduled export. Errors are already logged by the
// service; a run skipped because another is active is noted at debug level.
func (s *Scheduler) runOnce(ctx context.Context) {
	_, err := s.service.Export(ctx, TriggerSchedule)
	if errors.Is(err, core.ErrExportInProgress) {
		slog.Debug("scheduled export skipped, another export is running")
	}
}
