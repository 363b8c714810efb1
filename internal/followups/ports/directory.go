// Package ports defines consumer-driven interfaces for the collaborators the
// follow-up engine depends on. Implementations live in other modules.
package ports

import (
	"context"

	"github.com/google/uuid"
)

// SubjectRecord is the minimal lead or client data the engine needs.
type SubjectRecord struct {
	ID         uuid.UUID
	Name       string
	Phone      string
	AssignedTo *uuid.UUID
}

// UserRecord is the minimal user data the engine needs. ManagerID is used to
// notify a salesperson's manager about positive outcomes.
type UserRecord struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     string
	ManagerID *uuid.UUID
}

// Subject statuses written when an outcome changes the subject.
const (
	SubjectStatusConverted    = "converted"
	SubjectStatusDisqualified = "disqualified"
)

// Directory resolves leads, clients and users by id and applies subject
// status changes. Missing records fail with apperr NotFound.
type Directory interface {
	GetLead(ctx context.Context, id uuid.UUID) (SubjectRecord, error)
	GetClient(ctx context.Context, id uuid.UUID) (SubjectRecord, error)
	GetUser(ctx context.Context, id uuid.UUID) (UserRecord, error)
	SetLeadStatus(ctx context.Context, id uuid.UUID, status string) error
	SetClientStatus(ctx context.Context, id uuid.UUID, status string) error
}
