// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"followup_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Notification Events
// =============================================================================

// NotificationRequested is published when a module wants a user notified.
// The notification module persists it to the outbox for delivery.
type NotificationRequested struct {
	BaseEvent
	UserID  uuid.UUID      `json:"userId"`
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
}

func (e NotificationRequested) EventName() string { return "notification.requested" }

// NotificationOutboxDue is published by the scheduler when a notification outbox
// record should be processed.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID uuid.UUID `json:"outboxId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
