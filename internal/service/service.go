package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/taskvault/internal/events"
	"github.com/Skotchmaster/taskvault/pkg/logging"
)

// Observer receives the outcome of each auth operation.
type Observer interface {
	Observe(operation string, err error)
}

type nopObserver struct{}

func (nopObserver) Observe(string, error) {}

// publish is best-effort. A broker failure is logged and never fails the caller.
func publish(ctx context.Context, p events.Publisher, topic string, ev events.Event) {
	if p == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC()
	if err := p.Publish(ctx, topic, ev); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed",
			"topic", topic, "type", ev.Type, "subject", ev.SubjectID, "error", err)
	}
}
