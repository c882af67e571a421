package notify

import (
	"context"

	"go.uber.org/zap"
)

func init() {
	Register("log", func(_ Settings, log *zap.SugaredLogger) (Backend, error) {
		return &LogBackend{log: log}, nil
	})
}

// LogBackend writes messages to the structured log.
type LogBackend struct {
	log *zap.SugaredLogger
}

// NewLogBackend returns a LogBackend writing to log.
func NewLogBackend(log *zap.SugaredLogger) *LogBackend { return &LogBackend{log: log} }

// Send implements Backend.
func (b *LogBackend) Send(_ context.Context, msg Message, s Settings) error {
	b.log.Infow("notification",
		"subject", msg.Subject,
		"channel", msg.ChannelOr(s.Channel),
		"destination", s.Destination,
		"content", msg.Content,
	)
	return nil
}
