/*
Package notify delivers balance-change events to subscribers.

PURPOSE:
  Off the saga's critical path: the saga hands an event to the
  Dispatcher and returns; a worker goroutine publishes it.

COMPONENTS:
  Publisher:      one message to one topic (Redis pub/sub, or a log line)
  Dispatcher:     buffered queue + worker, implements loyalty.Notifier

DELIVERY:
  At most once. A full queue drops the event; a failed publish is
  logged and not retried. Subscribers that miss an event resync from
  GET /api/accounts/{id}.

MESSAGE:
  topic   "points/{accountID}"
  payload {"userId":7,"pointsBalance":320,"timestamp":1741631400123}

SEE ALSO:
  - loyalty/events.go: Event and payload encoding
*/
package notify

import (
	"context"
	"log/slog"
)

// Publisher sends one payload to one topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// LogPublisher writes messages to the log. Used when no broker is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{Logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.Logger.InfoContext(ctx, "balance notification", "topic", topic, "payload", string(payload))
	return nil
}
