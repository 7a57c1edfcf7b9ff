// Package worker drains journal entries onto the store off the request
// path. Appends are advisory for reviewer UX, so a full queue drops the
// entry with a warning instead of blocking the primary mutation.
package worker

import (
	"context"
	"log/slog"

	"altona/internal/journal/models"
)

// Appender is the synchronous append the worker drains into.
type Appender interface {
	Append(ctx context.Context, e models.Entry) (*models.Change, error)
}

// Worker is the asynchronous journal recorder handed to the identity and
// transition services.
type Worker struct {
	appender Appender
	logger   *slog.Logger
	queue    chan models.Entry
}

// New creates a worker with the given queue depth.
func New(appender Appender, queueSize int, logger *slog.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Worker{
		appender: appender,
		logger:   logger,
		queue:    make(chan models.Entry, queueSize),
	}
}

// Record enqueues an entry without blocking. The caller's context is not
// retained; the append happens on the worker goroutine.
func (w *Worker) Record(ctx context.Context, e models.Entry) {
	select {
	case w.queue <- e:
	default:
		w.logger.WarnContext(ctx, "journal queue full, dropping entry",
			slog.String("user_id", e.UserID.String()),
			slog.String("field", e.FieldName))
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return ctx.Err()
		case e := <-w.queue:
			w.append(e)
		}
	}
}

func (w *Worker) flush() {
	for {
		select {
		case e := <-w.queue:
			w.append(e)
		default:
			return
		}
	}
}

func (w *Worker) append(e models.Entry) {
	ctx := context.Background()
	if _, err := w.appender.Append(ctx, e); err != nil {
		w.logger.ErrorContext(ctx, "journal append failed",
			slog.String("user_id", e.UserID.String()),
			slog.String("field", e.FieldName),
			slog.String("error", err.Error()))
	}
}
