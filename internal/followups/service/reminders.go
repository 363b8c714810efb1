package service

import (
	"context"
	"time"

	"followup_backend/internal/followups/ports"
	"followup_backend/platform/apperr"

	"github.com/google/uuid"
)

// SendDueReminder notifies the assignee that a follow-up is coming due. The
// reminder is dropped when the follow-up was closed, archived or moved to a
// different date after the reminder was queued. It reports whether a
// notification was sent.
func (s *Service) SendDueReminder(ctx context.Context, id uuid.UUID, scheduledDate time.Time) (bool, error) {
	f, err := s.load(ctx, id)
	if apperr.Is(err, apperr.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !f.IsOpen() || f.IsArchived() || !f.ScheduledDate.Truncate(time.Second).Equal(scheduledDate.Truncate(time.Second)) {
		return false, nil
	}

	payload := followUpPayload(f, uuid.Nil)
	delete(payload, "actorId")
	payload["priority"] = string(f.Priority)
	s.notify(ctx, f.AssignedTo, ports.NotificationDue, payload)
	return true, nil
}
