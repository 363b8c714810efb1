// Package adapters bridges modules without letting them import each other's
// internals.
package adapters

import (
	"context"

	"followup_backend/internal/followups/ports"
	"followup_backend/internal/notification"

	"github.com/google/uuid"
)

// UserReader is the directory lookup the recipient adapter needs.
type UserReader interface {
	GetUser(ctx context.Context, id uuid.UUID) (ports.UserRecord, error)
}

// NotificationRecipientReader resolves notification recipients through the
// directory.
type NotificationRecipientReader struct {
	users UserReader
}

func NewNotificationRecipientReader(users UserReader) *NotificationRecipientReader {
	return &NotificationRecipientReader{users: users}
}

func (r *NotificationRecipientReader) GetRecipient(ctx context.Context, userID uuid.UUID) (notification.Recipient, error) {
	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return notification.Recipient{}, err
	}
	return notification.Recipient{Name: user.Name, Email: user.Email}, nil
}

var _ notification.RecipientReader = (*NotificationRecipientReader)(nil)
