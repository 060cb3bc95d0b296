package services

import (
	"context"
	"log/slog"
)

// Notifier delivers a login code to the operator over an out-of-band
// channel. Implementations must honour ctx cancellation where the channel
// allows it; LoginService additionally bounds every call with a timeout.
type Notifier interface {
	Send(ctx context.Context, code string) error
}

// LogNotifier writes the code to the application log. It is meant for
// development, where no delivery channel is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logger.WarnContext(ctx, "login code issued (log notifier, do not use in production)",
		slog.String("code", code))
	return nil
}
