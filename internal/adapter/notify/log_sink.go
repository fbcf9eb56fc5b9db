package notify

import (
	"context"
	"log/slog"

	domain "peerlend-backend/internal/domain/notify"
)

// LogSink writes notifications to the structured log. Used when no broker is
// configured.
type LogSink struct{ log *slog.Logger }

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Deliver(ctx context.Context, n domain.Notification) error {
	level := slog.LevelInfo
	if n.Urgency == domain.UrgencyUrgent {
		level = slog.LevelWarn
	}
	channels := make([]string, 0, len(n.Channels))
	for _, c := range n.Channels {
		channels = append(channels, string(c))
	}
	s.log.Log(ctx, level, "notification",
		"id", n.ID.String(),
		"recipient", n.Recipient,
		"kind", n.Kind,
		"urgency", string(n.Urgency),
		"channels", channels,
		"subject", n.Subject,
	)
	return nil
}
