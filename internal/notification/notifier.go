package notification

import (
	"context"

	"followup_backend/internal/events"
	"followup_backend/platform/logger"

	"github.com/google/uuid"
)

// Notifier turns follow-up notifications into NotificationRequested events.
// The module's outbox handler picks them up, so Send never blocks on delivery.
type Notifier struct {
	bus events.Bus
	log *logger.Logger
}

func NewNotifier(bus events.Bus, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.Discard()
	}
	return &Notifier{bus: bus, log: log}
}

// Send publishes the request. Missing recipients and kinds are dropped.
func (n *Notifier) Send(ctx context.Context, toUserID uuid.UUID, kind string, payload map[string]any) {
	if n == nil || n.bus == nil {
		return
	}
	if toUserID == uuid.Nil || kind == "" {
		n.log.WithContext(ctx).Warn("dropping notification without recipient or kind", "kind", kind)
		return
	}

	copied := make(map[string]any, len(payload))
	for k, v := range payload {
		copied[k] = v
	}

	n.bus.Publish(ctx, events.NotificationRequested{
		BaseEvent: events.NewBaseEvent(),
		UserID:    toUserID,
		Kind:      kind,
		Payload:   copied,
	})
}
