package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher writes events to the structured log. It is the default when
// no AMQP broker is configured, and keeps dev and test wiring broker-free.
type LogDispatcher struct {
	log *zap.Logger
}

func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.log.Info("notification event",
		zap.String("event_type", ev.Type),
		zap.Time("occurred_at", ev.OccurredAt),
		zap.Any("payload", ev.Payload),
	)
	return nil
}
