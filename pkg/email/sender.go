package email

import (
	"context"
	"log/slog"
)

// Sender delivers notification mail. The estate has no SMTP relay in every
// environment, so the default implementation records the message in the
// structured log where the office picks it up.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes outbound notifications to the log.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-backed sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "outbound notification",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body))
	return nil
}
