package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notification kinds sent by the engine.
const (
	NotificationAssigned    = "followup_assigned"
	NotificationRescheduled = "followup_rescheduled"
	NotificationCompleted   = "followup_completed"
	NotificationDue         = "followup_due"
)

// Notifier delivers a message to another user. Send is fire-and-forget:
// delivery failures are the implementation's concern and never reach callers.
type Notifier interface {
	Send(ctx context.Context, toUserID uuid.UUID, kind string, payload map[string]any)
}

// ReminderScheduler queues a reminder for a follow-up's due date.
type ReminderScheduler interface {
	ScheduleFollowUpReminder(ctx context.Context, followUpID uuid.UUID, scheduledDate time.Time) error
}
