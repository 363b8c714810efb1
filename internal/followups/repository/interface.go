// Package repository provides the persistence store for follow-ups.
package repository

import (
	"context"
	"time"

	"followup_backend/internal/followups/domain"

	"github.com/google/uuid"
)

// Filter narrows Find. Zero values do not filter. Statuses are display
// statuses, so overdue matches open work whose date lies before Now.
type Filter struct {
	Statuses        []domain.DisplayStatus
	Types           []domain.Type
	Priorities      []domain.Priority
	Search          string
	From            *time.Time
	To              *time.Time
	AssignedTo      *uuid.UUID
	CreatedBy       *uuid.UUID
	LeadID          *uuid.UUID
	ClientID        *uuid.UUID
	GeneratedFromID *uuid.UUID
	// Archived lists the archive instead of live records.
	Archived bool
	// After resumes a listing behind the last row of the previous page.
	After *Cursor
	Limit int
	Now   time.Time
}

// Cursor is a position in Find's (scheduled date, id) ordering.
type Cursor struct {
	ScheduledDate time.Time
	ID            uuid.UUID
}

// CursorAt returns the position of f.
func CursorAt(f domain.FollowUp) *Cursor {
	return &Cursor{ScheduledDate: f.ScheduledDate, ID: f.ID}
}

// after reports whether f sorts strictly behind c.
func (c Cursor) after(f domain.FollowUp) bool {
	if !f.ScheduledDate.Equal(c.ScheduledDate) {
		return f.ScheduledDate.After(c.ScheduledDate)
	}
	return f.ID.String() > c.ID.String()
}

// Reader provides read access to follow-ups.
type Reader interface {
	// FindByID returns the record whether or not it is archived.
	FindByID(ctx context.Context, id uuid.UUID) (domain.FollowUp, error)
	Find(ctx context.Context, filter Filter) ([]domain.FollowUp, error)
}

// Writer provides write access to follow-ups.
type Writer interface {
	Create(ctx context.Context, f domain.FollowUp) error
	// UpdateIfStatus writes f only if the stored record is live and still has
	// status expected. A record that moved on fails with InvalidTransition.
	UpdateIfStatus(ctx context.Context, f domain.FollowUp, expected domain.Status) error
	// SoftDelete archives a live record.
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	// Restore brings an archived record back.
	Restore(ctx context.Context, id uuid.UUID, at time.Time) error
	// Purge removes an archived record for good. Live records fail with NotArchived.
	Purge(ctx context.Context, id uuid.UUID) error
}

// Completer is implemented by stores that can write a completion and its
// successor as one unit. Either both rows are written or neither is; a nil
// successor writes the completion alone.
type Completer interface {
	CompleteWithSuccessor(ctx context.Context, completed domain.FollowUp, expected domain.Status, successor *domain.FollowUp) error
}

// Store is the full persistence contract.
type Store interface {
	Reader
	Writer
}

const (
	followUpNotFoundMsg = "follow-up not found"
	alreadyArchivedMsg  = "follow-up is already archived"
	notArchivedMsg      = "follow-up must be archived before it can be purged"
	archivedMsg         = "follow-up is archived"
)
