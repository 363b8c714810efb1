package domain

import (
	"fmt"
	"strings"
	"time"

	"followup_backend/platform/apperr"

	"github.com/google/uuid"
)

// NewFollowUp is the input of the create transition.
type NewFollowUp struct {
	Subject       SubjectRef
	Type          Type
	Title         string
	Description   string
	Notes         string
	Priority      Priority
	ScheduledDate time.Time
	CreatedBy     uuid.UUID
	AssignedTo    uuid.UUID
}

// Patch lists the editable fields of an open follow-up. Nil fields are kept.
type Patch struct {
	ScheduledDate *time.Time
	Type          *Type
	Title         *string
	Description   *string
	Notes         *string
	Priority      *Priority
	AssignedTo    *uuid.UUID
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.ScheduledDate == nil && p.Type == nil && p.Title == nil &&
		p.Description == nil && p.Notes == nil && p.Priority == nil && p.AssignedTo == nil
}

// Completion is the result of the complete transition.
type Completion struct {
	Record     FollowUp
	Resolution Resolution
}

// Machine owns the valid status transitions of a follow-up. Every transition
// returns a new record and leaves its input untouched on failure.
type Machine struct {
	resolver *Resolver
	newID    func() uuid.UUID
}

// NewMachine creates a state machine that consults resolver on completion.
func NewMachine(resolver *Resolver) *Machine {
	if resolver == nil {
		resolver = NewResolver(nil, nil)
	}
	return &Machine{resolver: resolver, newID: uuid.New}
}

// Resolver returns the resolver used on completion.
func (m *Machine) Resolver() *Resolver {
	return m.resolver
}

// Create validates input and builds a scheduled follow-up.
func (m *Machine) Create(in NewFollowUp, now time.Time) (FollowUp, error) {
	if in.Subject.IsZero() {
		return FollowUp{}, apperr.Validation("a lead or client is required")
	}
	if err := in.Subject.Validate(); err != nil {
		return FollowUp{}, err
	}
	if !in.Type.Valid() {
		return FollowUp{}, apperr.Validation(fmt.Sprintf("unknown type %q", in.Type))
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return FollowUp{}, apperr.Validation("title is required")
	}
	if in.ScheduledDate.IsZero() {
		return FollowUp{}, apperr.Validation("scheduledDate is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return FollowUp{}, apperr.Validation(fmt.Sprintf("unknown priority %q", in.Priority))
	}
	if in.CreatedBy == uuid.Nil {
		return FollowUp{}, apperr.Validation("createdBy is required")
	}
	assignee := in.AssignedTo
	if assignee == uuid.Nil {
		assignee = in.CreatedBy
	}

	f := FollowUp{
		ID:            m.newID(),
		Subject:       in.Subject.Clone(),
		Type:          in.Type,
		Title:         title,
		Description:   strings.TrimSpace(in.Description),
		Notes:         strings.TrimSpace(in.Notes),
		Priority:      priority,
		Status:        StatusScheduled,
		ScheduledDate: in.ScheduledDate,
		CreatedBy:     in.CreatedBy,
		AssignedTo:    assignee,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return f, f.CheckInvariants()
}

// Spawn builds the successor described by plan. The generator must already be
// completed.
func (m *Machine) Spawn(generator FollowUp, plan NextFollowUpPlan, createdBy uuid.UUID, now time.Time) (FollowUp, error) {
	if generator.Status != StatusCompleted {
		return FollowUp{}, apperr.InvalidTransition("successor requires a completed generator")
	}
	if plan.GeneratedFromID != generator.ID {
		return FollowUp{}, apperr.Validation("plan was not produced by this follow-up")
	}

	f, err := m.Create(NewFollowUp{
		Subject:       plan.Subject,
		Type:          plan.Type,
		Title:         plan.Title,
		Description:   plan.Description,
		Priority:      plan.Priority,
		ScheduledDate: plan.ScheduledDate,
		CreatedBy:     createdBy,
		AssignedTo:    plan.AssignedTo,
	}, now)
	if err != nil {
		return FollowUp{}, err
	}
	generatedFrom := generator.ID
	f.GeneratedFromID = &generatedFrom
	return f, nil
}

// Start moves a scheduled follow-up to in_progress.
func (m *Machine) Start(f FollowUp, now time.Time) (FollowUp, error) {
	if f.Status != StatusScheduled {
		return FollowUp{}, invalidTransition("start", f.Status)
	}
	next := f.Clone()
	next.Status = StatusInProgress
	next.UpdatedAt = now
	return next, next.CheckInvariants()
}

// Reschedule applies patch to an open follow-up. A missed follow-up that gets
// a new date is scheduled again.
func (m *Machine) Reschedule(f FollowUp, patch Patch, now time.Time) (FollowUp, error) {
	if f.Status.Terminal() {
		return FollowUp{}, invalidTransition("reschedule", f.Status)
	}
	if patch.IsEmpty() {
		return FollowUp{}, apperr.Validation("nothing to update")
	}

	next := f.Clone()
	if patch.ScheduledDate != nil {
		if patch.ScheduledDate.IsZero() {
			return FollowUp{}, apperr.Validation("scheduledDate cannot be cleared")
		}
		next.ScheduledDate = *patch.ScheduledDate
		if next.Status == StatusMissed {
			next.Status = StatusScheduled
		}
	}
	if patch.Type != nil {
		if !patch.Type.Valid() {
			return FollowUp{}, apperr.Validation(fmt.Sprintf("unknown type %q", *patch.Type))
		}
		next.Type = *patch.Type
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return FollowUp{}, apperr.Validation("title cannot be empty")
		}
		next.Title = title
	}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Notes != nil {
		next.Notes = strings.TrimSpace(*patch.Notes)
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return FollowUp{}, apperr.Validation(fmt.Sprintf("unknown priority %q", *patch.Priority))
		}
		next.Priority = *patch.Priority
	}
	if patch.AssignedTo != nil {
		if *patch.AssignedTo == uuid.Nil {
			return FollowUp{}, apperr.Validation("assignedTo cannot be cleared")
		}
		next.AssignedTo = *patch.AssignedTo
	}
	next.UpdatedAt = now
	return next, next.CheckInvariants()
}

// Complete records outcome on an open follow-up and resolves what comes next.
// The outcome is resolved before anything is changed.
func (m *Machine) Complete(f FollowUp, outcome Outcome, notes string, now time.Time) (Completion, error) {
	if f.Status.Terminal() {
		return Completion{}, invalidTransition("complete", f.Status)
	}

	resolution, err := m.resolver.Resolve(outcome, f, now)
	if err != nil {
		return Completion{}, err
	}

	next := f.Clone()
	next.Status = StatusCompleted
	completedAt := now
	next.CompletedAt = &completedAt
	o := outcome
	next.Outcome = &o
	next.Notes = appendNotes(next.Notes, notes)
	next.UpdatedAt = now
	if err := next.CheckInvariants(); err != nil {
		return Completion{}, err
	}
	return Completion{Record: next, Resolution: resolution}, nil
}

// Cancel stops an open follow-up without a successor.
func (m *Machine) Cancel(f FollowUp, now time.Time) (FollowUp, error) {
	if f.Status.Terminal() {
		return FollowUp{}, invalidTransition("cancel", f.Status)
	}
	next := f.Clone()
	next.Status = StatusCancelled
	next.UpdatedAt = now
	return next, next.CheckInvariants()
}

func appendNotes(existing, notes string) string {
	notes = strings.TrimSpace(notes)
	switch {
	case notes == "":
		return existing
	case existing == "":
		return notes
	default:
		return existing + "\n" + notes
	}
}

func invalidTransition(action string, from Status) error {
	return apperr.InvalidTransition(fmt.Sprintf("cannot %s a follow-up that is %s", action, from))
}
