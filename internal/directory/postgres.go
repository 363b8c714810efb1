// Package directory reads leads, clients and users for the follow-up engine
// and applies subject status changes.
package directory

import (
	"context"
	"errors"

	"followup_backend/internal/followups/ports"
	"followup_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opGetLead         = "directory.get_lead"
	opGetClient       = "directory.get_client"
	opGetUser         = "directory.get_user"
	opSetLeadStatus   = "directory.set_lead_status"
	opSetClientStatus = "directory.set_client_status"
)

// PGDirectory is the Postgres-backed directory.
type PGDirectory struct {
	pool *pgxpool.Pool
}

func NewPGDirectory(pool *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{pool: pool}
}

func (d *PGDirectory) GetLead(ctx context.Context, id uuid.UUID) (ports.SubjectRecord, error) {
	return d.getSubject(ctx, opGetLead, "lead not found",
		`SELECT id, name, COALESCE(phone, ''), assigned_to FROM leads WHERE id = $1`, id)
}

func (d *PGDirectory) GetClient(ctx context.Context, id uuid.UUID) (ports.SubjectRecord, error) {
	return d.getSubject(ctx, opGetClient, "client not found",
		`SELECT id, name, COALESCE(phone, ''), assigned_to FROM clients WHERE id = $1`, id)
}

func (d *PGDirectory) getSubject(ctx context.Context, op, notFound, query string, id uuid.UUID) (ports.SubjectRecord, error) {
	var rec ports.SubjectRecord
	err := d.pool.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.Name, &rec.Phone, &rec.AssignedTo)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.SubjectRecord{}, apperr.NotFound(notFound).WithOp(op)
	}
	if err != nil {
		return ports.SubjectRecord{}, err
	}
	return rec, nil
}

func (d *PGDirectory) GetUser(ctx context.Context, id uuid.UUID) (ports.UserRecord, error) {
	var rec ports.UserRecord
	err := d.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), manager_id FROM users WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.Name, &rec.Email, &rec.Phone, &rec.ManagerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.UserRecord{}, apperr.NotFound("user not found").WithOp(opGetUser)
	}
	if err != nil {
		return ports.UserRecord{}, err
	}
	return rec, nil
}

func (d *PGDirectory) SetLeadStatus(ctx context.Context, id uuid.UUID, status string) error {
	return d.setStatus(ctx, opSetLeadStatus, "lead not found",
		`UPDATE leads SET status = $2, updated_at = now() WHERE id = $1`, id, status)
}

func (d *PGDirectory) SetClientStatus(ctx context.Context, id uuid.UUID, status string) error {
	return d.setStatus(ctx, opSetClientStatus, "client not found",
		`UPDATE clients SET status = $2, updated_at = now() WHERE id = $1`, id, status)
}

func (d *PGDirectory) setStatus(ctx context.Context, op, notFound, query string, id uuid.UUID, status string) error {
	if status == "" {
		return apperr.Validation("status is required").WithOp(op)
	}
	tag, err := d.pool.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(notFound).WithOp(op)
	}
	return nil
}

var _ ports.Directory = (*PGDirectory)(nil)
