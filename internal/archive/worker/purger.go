// Package worker runs the retention purge on a schedule.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// Purger deletes expired archive snapshots.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Worker ticks the purger until the context is cancelled.
type Worker struct {
	purger   Purger
	interval time.Duration
	logger   *slog.Logger
}

// New creates a purge worker. Interval must be positive.
func New(purger Purger, interval time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{purger: purger, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, purging once per interval. Purge
// errors are logged, never fatal.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.purger.PurgeExpired(ctx); err != nil {
				w.logger.ErrorContext(ctx, "archive purge failed",
					slog.String("error", err.Error()))
			}
		}
	}
}
