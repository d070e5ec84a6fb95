package publisher

import (
	"context"
	"log/slog"
)

// Log writes events to the logger instead of a broker. Used when no brokers
// are configured.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a publisher that logs every event at info level.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Publish(ctx context.Context, topic, key string, payload []byte) error {
	l.logger.InfoContext(ctx, "access event",
		"topic", topic,
		"badge_id", key,
		"payload", string(payload),
	)
	return nil
}
