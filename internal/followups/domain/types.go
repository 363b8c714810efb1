// Package domain provides the core business rules for follow-ups: the outcome
// taxonomy, the next-action resolver, the status state machine and the
// deduplication and grouping engine. Nothing in here performs I/O.
package domain

import (
	"time"

	"followup_backend/platform/apperr"

	"github.com/google/uuid"
)

// Type is the contact channel of a follow-up.
type Type string

const (
	TypeCall     Type = "call"
	TypeWhatsApp Type = "whatsapp"
	TypeEmail    Type = "email"
	TypeMeeting  Type = "meeting"
	TypeDemo     Type = "demo"
	TypeVisit    Type = "visit"
)

// Types lists every follow-up type in display order.
var Types = []Type{TypeCall, TypeWhatsApp, TypeEmail, TypeMeeting, TypeDemo, TypeVisit}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Priority ranks how urgent a follow-up is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// Status is the persisted lifecycle state of a follow-up.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	// StatusMissed is written by an external reconciliation pass and is only
	// ever read here.
	StatusMissed Status = "missed"
)

// Statuses lists every persisted status.
var Statuses = []Status{StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusMissed}

// Valid reports whether s is a persisted status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// DisplayStatus is the status shown to users. It adds the derived overdue
// state to the persisted statuses.
type DisplayStatus string

const (
	DisplayScheduled  DisplayStatus = "scheduled"
	DisplayInProgress DisplayStatus = "in_progress"
	DisplayOverdue    DisplayStatus = "overdue"
	DisplayMissed     DisplayStatus = "missed"
	DisplayCompleted  DisplayStatus = "completed"
	DisplayCancelled  DisplayStatus = "cancelled"
)

var displayRank = map[DisplayStatus]int{
	DisplayScheduled:  1,
	DisplayInProgress: 2,
	DisplayOverdue:    3,
	DisplayMissed:     4,
	DisplayCompleted:  5,
	DisplayCancelled:  6,
}

// Rank is the sort position of the display status inside a group.
func (d DisplayStatus) Rank() int {
	if r, ok := displayRank[d]; ok {
		return r
	}
	return len(displayRank) + 1
}

// SubjectRef points at the lead or client a follow-up belongs to.
// At most one side is set; a ref with neither side is unassigned.
type SubjectRef struct {
	LeadID   *uuid.UUID `json:"leadId,omitempty"`
	ClientID *uuid.UUID `json:"clientId,omitempty"`
}

// LeadSubject builds a ref to a lead.
func LeadSubject(id uuid.UUID) SubjectRef {
	return SubjectRef{LeadID: &id}
}

// ClientSubject builds a ref to a client.
func ClientSubject(id uuid.UUID) SubjectRef {
	return SubjectRef{ClientID: &id}
}

// IsZero reports whether neither a lead nor a client is referenced.
func (s SubjectRef) IsZero() bool {
	return s.LeadID == nil && s.ClientID == nil
}

// Validate fails when both sides are set.
func (s SubjectRef) Validate() error {
	if s.LeadID != nil && s.ClientID != nil {
		return apperr.Validation("a follow-up belongs to either a lead or a client, not both")
	}
	return nil
}

// UnassignedGroupKey is the group key of follow-ups without a subject.
const UnassignedGroupKey = "unassigned"

// Key is the stable grouping key of the subject.
func (s SubjectRef) Key() string {
	switch {
	case s.LeadID != nil:
		return "lead:" + s.LeadID.String()
	case s.ClientID != nil:
		return "client:" + s.ClientID.String()
	default:
		return UnassignedGroupKey
	}
}

// Clone returns a ref that shares no pointers with s.
func (s SubjectRef) Clone() SubjectRef {
	var out SubjectRef
	if s.LeadID != nil {
		id := *s.LeadID
		out.LeadID = &id
	}
	if s.ClientID != nil {
		id := *s.ClientID
		out.ClientID = &id
	}
	return out
}

// FollowUp is a schedulable contact task against a lead or client.
type FollowUp struct {
	ID              uuid.UUID
	Subject         SubjectRef
	Type            Type
	Title           string
	Description     string
	Notes           string
	Priority        Priority
	Status          Status
	ScheduledDate   time.Time
	CreatedBy       uuid.UUID
	AssignedTo      uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
	Outcome         *Outcome
	GeneratedFromID *uuid.UUID
	ArchivedAt      *time.Time
}

// Clone returns a deep copy so transitions never alias the caller's record.
func (f FollowUp) Clone() FollowUp {
	out := f
	out.Subject = f.Subject.Clone()
	if f.CompletedAt != nil {
		t := *f.CompletedAt
		out.CompletedAt = &t
	}
	if f.Outcome != nil {
		o := *f.Outcome
		out.Outcome = &o
	}
	if f.GeneratedFromID != nil {
		id := *f.GeneratedFromID
		out.GeneratedFromID = &id
	}
	if f.ArchivedAt != nil {
		t := *f.ArchivedAt
		out.ArchivedAt = &t
	}
	return out
}

// IsOpen reports whether the follow-up still needs action.
func (f FollowUp) IsOpen() bool {
	return !f.Status.Terminal()
}

// IsArchived reports whether the follow-up sits in the recoverable archive.
func (f FollowUp) IsArchived() bool {
	return f.ArchivedAt != nil
}

// DisplayStatus derives the user-facing status at now. Open scheduled or
// in-progress work whose date has passed is overdue.
func (f FollowUp) DisplayStatus(now time.Time) DisplayStatus {
	switch f.Status {
	case StatusScheduled, StatusInProgress:
		if f.ScheduledDate.Before(now) {
			return DisplayOverdue
		}
		return DisplayStatus(f.Status)
	default:
		return DisplayStatus(f.Status)
	}
}

// CheckInvariants verifies the record is internally consistent. Completion
// status, completion time and outcome are set together or not at all.
func (f FollowUp) CheckInvariants() error {
	if err := f.Subject.Validate(); err != nil {
		return err
	}
	if !f.Status.Valid() {
		return apperr.Validation("unknown status " + string(f.Status))
	}
	completed := f.Status == StatusCompleted
	if completed != (f.CompletedAt != nil) || completed != (f.Outcome != nil) {
		return apperr.InvalidTransition("completion status, completion time and outcome must be set together")
	}
	if f.GeneratedFromID != nil && *f.GeneratedFromID == f.ID {
		return apperr.Validation("a follow-up cannot be generated from itself")
	}
	return nil
}
