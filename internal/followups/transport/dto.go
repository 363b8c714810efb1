package transport

import (
	"time"

	"followup_backend/internal/followups/domain"

	"github.com/google/uuid"
)

// ListScope selects whose follow-ups a listing covers.
type ListScope string

const (
	ScopeAssigned ListScope = "assigned"
	ScopeCreated  ListScope = "created"
	ScopeAll      ListScope = "all"
)

// CreateFollowUpRequest is the request body for creating a follow-up.
type CreateFollowUpRequest struct {
	LeadID        *uuid.UUID `json:"leadId,omitempty"`
	ClientID      *uuid.UUID `json:"clientId,omitempty"`
	Type          string     `json:"type" validate:"required,followup_type"`
	Title         string     `json:"title" validate:"required,min=1,max=200"`
	Description   string     `json:"description,omitempty" validate:"max=2000"`
	Notes         string     `json:"notes,omitempty" validate:"max=4000"`
	Priority      string     `json:"priority,omitempty" validate:"omitempty,followup_priority"`
	ScheduledDate *time.Time `json:"scheduledDate" validate:"required"`
	AssignedTo    *uuid.UUID `json:"assignedTo,omitempty"`
}

// RescheduleFollowUpRequest is the request body for editing an open follow-up.
type RescheduleFollowUpRequest struct {
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	Type          *string    `json:"type,omitempty" validate:"omitempty,followup_type"`
	Title         *string    `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description   *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	Notes         *string    `json:"notes,omitempty" validate:"omitempty,max=4000"`
	Priority      *string    `json:"priority,omitempty" validate:"omitempty,followup_priority"`
	AssignedTo    *uuid.UUID `json:"assignedTo,omitempty"`
}

// CompleteFollowUpRequest is the request body for completing a follow-up.
// The outcome is checked against the catalog by the service so unknown labels
// surface as UnknownOutcome rather than a generic validation error.
type CompleteFollowUpRequest struct {
	Outcome string `json:"outcome" validate:"required,max=64"`
	Notes   string `json:"notes,omitempty" validate:"max=4000"`
}

// BulkDeleteRequest is the request body for archiving and purging many follow-ups.
type BulkDeleteRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,max=200"`
}

// ListFollowUpsRequest is the query parameters for listing follow-ups.
type ListFollowUpsRequest struct {
	Scope    string   `form:"scope" validate:"omitempty,oneof=assigned created all"`
	Status   []string `form:"status" validate:"omitempty,dive,followup_display_status"`
	Type     []string `form:"type" validate:"omitempty,dive,followup_type"`
	Priority []string `form:"priority" validate:"omitempty,dive,followup_priority"`
	Search   string   `form:"search" validate:"max=200"`
	From     string   `form:"from"` // RFC3339 or ISO date
	To       string   `form:"to"`   // RFC3339 or ISO date
	LeadID   string   `form:"leadId" validate:"omitempty,uuid"`
	ClientID string   `form:"clientId" validate:"omitempty,uuid"`
	Archived bool     `form:"archived"`
	Page     int      `form:"page" validate:"omitempty,min=1,max=100000"`
	PageSize int      `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// FollowUpResponse is the response body for a follow-up.
type FollowUpResponse struct {
	ID              uuid.UUID            `json:"id"`
	LeadID          *uuid.UUID           `json:"leadId,omitempty"`
	ClientID        *uuid.UUID           `json:"clientId,omitempty"`
	Type            domain.Type          `json:"type"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	Notes           string               `json:"notes"`
	Priority        domain.Priority      `json:"priority"`
	Status          domain.Status        `json:"status"`
	DisplayStatus   domain.DisplayStatus `json:"displayStatus"`
	ScheduledDate   time.Time            `json:"scheduledDate"`
	CreatedBy       uuid.UUID            `json:"createdBy"`
	AssignedTo      uuid.UUID            `json:"assignedTo"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
	CompletedAt     *time.Time           `json:"completedAt,omitempty"`
	Outcome         *domain.Outcome      `json:"outcome,omitempty"`
	GeneratedFromID *uuid.UUID           `json:"generatedFromId,omitempty"`
	ArchivedAt      *time.Time           `json:"archivedAt,omitempty"`
}

// GroupResponse is one subject's follow-ups in a grouped listing.
type GroupResponse struct {
	Key       string             `json:"key"`
	LeadID    *uuid.UUID         `json:"leadId,omitempty"`
	ClientID  *uuid.UUID         `json:"clientId,omitempty"`
	Name      string             `json:"name"`
	Phone     string             `json:"phone,omitempty"`
	FollowUps []FollowUpResponse `json:"followUps"`
	Counts    domain.Counts      `json:"counts"`
}

// ListFollowUpsResponse is the grouped, paginated listing.
type ListFollowUpsResponse struct {
	Groups            []GroupResponse   `json:"groups"`
	Pagination        domain.Pagination `json:"pagination"`
	TotalFollowUps    int               `json:"totalFollowUps"`
	DuplicatesRemoved int               `json:"duplicatesRemoved"`
}

// PartialFailure reports a best-effort step that failed after the primary
// write was committed.
type PartialFailure struct {
	Step      string `json:"step"`
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
}

// Best-effort steps of a completion.
const (
	StepSuccessor     = "successor"
	StepSubjectStatus = "subject_status"
	StepNotification  = "notification"
)

// CompleteFollowUpResponse is the result of a completion.
type CompleteFollowUpResponse struct {
	FollowUp       FollowUpResponse  `json:"followUp"`
	Category       domain.Category   `json:"category"`
	Successor      *FollowUpResponse `json:"successor,omitempty"`
	SubjectEffect  string            `json:"subjectEffect,omitempty"`
	PartialFailure []PartialFailure  `json:"partialFailure,omitempty"`
}

// BulkDeleteResult is the outcome for one id of a bulk delete.
type BulkDeleteResult struct {
	ID        uuid.UUID `json:"id"`
	OK        bool      `json:"ok"`
	ErrorKind string    `json:"errorKind,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// BulkDeleteResponse lists per-id results in request order.
type BulkDeleteResponse struct {
	Results   []BulkDeleteResult `json:"results"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

// OutcomeResponse describes one entry of the outcome catalog.
type OutcomeResponse struct {
	Outcome       domain.Outcome  `json:"outcome"`
	Label         string          `json:"label"`
	Category      domain.Category `json:"category"`
	Action        string          `json:"action"`
	DeferDays     *int            `json:"deferDays,omitempty"`
	NextType      domain.Type     `json:"nextType,omitempty"`
	NextPriority  domain.Priority `json:"nextPriority,omitempty"`
	SubjectEffect string          `json:"subjectEffect,omitempty"`
}

// StatsResponse counts the caller's follow-ups by display status.
type StatsResponse struct {
	domain.Counts
	DuplicatesRemoved int `json:"duplicatesRemoved"`
}

// ChainResponse is the generation chain a follow-up belongs to, oldest first.
type ChainResponse struct {
	Items []FollowUpResponse `json:"items"`
}
