package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"followup_backend/internal/followups/domain"
	"followup_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const followUpColumns = `id, lead_id, client_id, type, title, description, notes, priority, status,
	scheduled_date, created_by, assigned_to, created_at, updated_at, completed_at, outcome,
	generated_from_id, archived_at`

const (
	insertFollowUpQuery = `
		INSERT INTO follow_ups (` + followUpColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	selectFollowUpByIDQuery = `SELECT ` + followUpColumns + ` FROM follow_ups WHERE id = $1`

	updateIfStatusQuery = `
		UPDATE follow_ups SET
			type = $2,
			title = $3,
			description = $4,
			notes = $5,
			priority = $6,
			status = $7,
			scheduled_date = $8,
			assigned_to = $9,
			updated_at = $10,
			completed_at = $11,
			outcome = $12
		WHERE id = $1 AND status = $13 AND archived_at IS NULL`

	softDeleteQuery = `UPDATE follow_ups SET archived_at = $2, updated_at = $2 WHERE id = $1 AND archived_at IS NULL`
	restoreQuery    = `UPDATE follow_ups SET archived_at = NULL, updated_at = $2 WHERE id = $1 AND archived_at IS NOT NULL`
	purgeQuery      = `DELETE FROM follow_ups WHERE id = $1 AND archived_at IS NOT NULL`
	stateQuery      = `SELECT status, archived_at IS NOT NULL FROM follow_ups WHERE id = $1`
)

// likeEscaper makes a search term match literally inside ILIKE.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// DefaultFindLimit caps Find when the filter sets no limit.
const DefaultFindLimit = 1000

// PGStore is the Postgres-backed Store.
type PGStore struct {
	pool *pgxpool.Pool
}

var (
	_ Store     = (*PGStore)(nil)
	_ Completer = (*PGStore)(nil)
)

// NewPGStore creates a Postgres store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Create inserts a follow-up.
func (s *PGStore) Create(ctx context.Context, f domain.FollowUp) error {
	if _, err := s.pool.Exec(ctx, insertFollowUpQuery, insertArgs(f)...); err != nil {
		return createError(err)
	}
	return nil
}

// FindByID returns a follow-up by id.
func (s *PGStore) FindByID(ctx context.Context, id uuid.UUID) (domain.FollowUp, error) {
	f, err := scanFollowUp(s.pool.QueryRow(ctx, selectFollowUpByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FollowUp{}, apperr.NotFound(followUpNotFoundMsg)
		}
		return domain.FollowUp{}, fmt.Errorf("failed to get follow-up: %w", err)
	}
	return f, nil
}

// Find lists follow-ups matching filter, ordered by scheduled date.
func (s *PGStore) Find(ctx context.Context, filter Filter) ([]domain.FollowUp, error) {
	query, args := buildFindQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list follow-ups: %w", err)
	}
	defer rows.Close()

	items := make([]domain.FollowUp, 0)
	for rows.Next() {
		f, err := scanFollowUp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan follow-up: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate follow-ups: %w", err)
	}
	return items, nil
}

// UpdateIfStatus performs an optimistic update keyed on the current status.
func (s *PGStore) UpdateIfStatus(ctx context.Context, f domain.FollowUp, expected domain.Status) error {
	result, err := s.pool.Exec(ctx, updateIfStatusQuery, updateArgs(f, expected)...)
	if err != nil {
		return fmt.Errorf("failed to update follow-up: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}
	return s.transitionConflict(ctx, f.ID, expected)
}

// CompleteWithSuccessor writes the completed record and its successor in one
// transaction.
func (s *PGStore) CompleteWithSuccessor(ctx context.Context, completed domain.FollowUp, expected domain.Status, successor *domain.FollowUp) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin completion: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := tx.Exec(ctx, updateIfStatusQuery, updateArgs(completed, expected)...)
	if err != nil {
		return fmt.Errorf("failed to update follow-up: %w", err)
	}
	if result.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return s.transitionConflict(ctx, completed.ID, expected)
	}

	if successor != nil {
		if _, err := tx.Exec(ctx, insertFollowUpQuery, insertArgs(*successor)...); err != nil {
			return createError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit completion: %w", err)
	}
	return nil
}

func insertArgs(f domain.FollowUp) []any {
	return []any{
		f.ID, f.Subject.LeadID, f.Subject.ClientID, string(f.Type), f.Title, f.Description, f.Notes,
		string(f.Priority), string(f.Status), f.ScheduledDate, f.CreatedBy, f.AssignedTo,
		f.CreatedAt, f.UpdatedAt, f.CompletedAt, outcomeValue(f.Outcome), f.GeneratedFromID, f.ArchivedAt,
	}
}

func updateArgs(f domain.FollowUp, expected domain.Status) []any {
	return []any{
		f.ID, string(f.Type), f.Title, f.Description, f.Notes, string(f.Priority), string(f.Status),
		f.ScheduledDate, f.AssignedTo, f.UpdatedAt, f.CompletedAt, outcomeValue(f.Outcome), string(expected),
	}
}

func createError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.Conflict("follow-up already exists or already has a successor")
	}
	return fmt.Errorf("failed to create follow-up: %w", err)
}

// transitionConflict explains why a status-keyed update matched no row.
func (s *PGStore) transitionConflict(ctx context.Context, id uuid.UUID, expected domain.Status) error {
	status, archived, err := s.state(ctx, id)
	if err != nil {
		return err
	}
	if archived {
		return apperr.InvalidTransition(archivedMsg)
	}
	return apperr.InvalidTransition(fmt.Sprintf("follow-up is %s, expected %s", status, expected))
}

// SoftDelete archives a live follow-up.
func (s *PGStore) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := s.pool.Exec(ctx, softDeleteQuery, id, at)
	if err != nil {
		return fmt.Errorf("failed to archive follow-up: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}
	if _, _, err := s.state(ctx, id); err != nil {
		return err
	}
	return apperr.Conflict(alreadyArchivedMsg)
}

// Restore un-archives a follow-up.
func (s *PGStore) Restore(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := s.pool.Exec(ctx, restoreQuery, id, at)
	if err != nil {
		return fmt.Errorf("failed to restore follow-up: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}
	if _, _, err := s.state(ctx, id); err != nil {
		return err
	}
	return apperr.Conflict("follow-up is not archived")
}

// Purge deletes an archived follow-up.
func (s *PGStore) Purge(ctx context.Context, id uuid.UUID) error {
	result, err := s.pool.Exec(ctx, purgeQuery, id)
	if err != nil {
		return fmt.Errorf("failed to purge follow-up: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}
	if _, _, err := s.state(ctx, id); err != nil {
		return err
	}
	return apperr.NotArchived(notArchivedMsg)
}

func (s *PGStore) state(ctx context.Context, id uuid.UUID) (domain.Status, bool, error) {
	var status string
	var archived bool
	if err := s.pool.QueryRow(ctx, stateQuery, id).Scan(&status, &archived); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, apperr.NotFound(followUpNotFoundMsg)
		}
		return "", false, fmt.Errorf("failed to read follow-up state: %w", err)
	}
	return domain.Status(status), archived, nil
}

// queryBuilder collects WHERE clauses with numbered placeholders.
type queryBuilder struct {
	where []string
	args  []any
}

func (b *queryBuilder) arg(value any) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *queryBuilder) add(clause string) {
	b.where = append(b.where, clause)
}

func buildFindQuery(filter Filter) (string, []any) {
	b := &queryBuilder{}
	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}

	if filter.Archived {
		b.add("archived_at IS NOT NULL")
	} else {
		b.add("archived_at IS NULL")
	}
	if filter.AssignedTo != nil {
		b.add("assigned_to = " + b.arg(*filter.AssignedTo))
	}
	if filter.CreatedBy != nil {
		b.add("created_by = " + b.arg(*filter.CreatedBy))
	}
	if filter.LeadID != nil {
		b.add("lead_id = " + b.arg(*filter.LeadID))
	}
	if filter.ClientID != nil {
		b.add("client_id = " + b.arg(*filter.ClientID))
	}
	if filter.GeneratedFromID != nil {
		b.add("generated_from_id = " + b.arg(*filter.GeneratedFromID))
	}
	if len(filter.Types) > 0 {
		values := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			values[i] = string(t)
		}
		b.add("type = ANY(" + b.arg(values) + ")")
	}
	if len(filter.Priorities) > 0 {
		values := make([]string, len(filter.Priorities))
		for i, p := range filter.Priorities {
			values[i] = string(p)
		}
		b.add("priority = ANY(" + b.arg(values) + ")")
	}
	if len(filter.Statuses) > 0 {
		b.add(statusClause(b, filter.Statuses, now))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := b.arg("%" + likeEscaper.Replace(search) + "%")
		b.add(fmt.Sprintf(`(title ILIKE %s ESCAPE '\' OR description ILIKE %s ESCAPE '\')`, p, p))
	}
	if filter.From != nil {
		b.add("scheduled_date >= " + b.arg(*filter.From))
	}
	if filter.To != nil {
		b.add("scheduled_date <= " + b.arg(*filter.To))
	}
	if filter.After != nil {
		b.add(fmt.Sprintf("(scheduled_date, id) > (%s, %s)", b.arg(filter.After.ScheduledDate), b.arg(filter.After.ID)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultFindLimit
	}

	query := "SELECT " + followUpColumns + " FROM follow_ups WHERE " + strings.Join(b.where, " AND ") +
		" ORDER BY scheduled_date ASC, id ASC LIMIT " + b.arg(limit)
	return query, b.args
}

// statusClause matches display statuses. Open statuses split on now so a
// scheduled filter never returns overdue work and vice versa.
func statusClause(b *queryBuilder, statuses []domain.DisplayStatus, now time.Time) string {
	var nowArg string
	nowParam := func() string {
		if nowArg == "" {
			nowArg = b.arg(now)
		}
		return nowArg
	}

	parts := make([]string, 0, len(statuses))
	for _, s := range statuses {
		switch s {
		case domain.DisplayOverdue:
			parts = append(parts, "(status IN ('scheduled', 'in_progress') AND scheduled_date < "+nowParam()+")")
		case domain.DisplayScheduled, domain.DisplayInProgress:
			parts = append(parts, fmt.Sprintf("(status = %s AND scheduled_date >= %s)", b.arg(string(s)), nowParam()))
		default:
			parts = append(parts, "status = "+b.arg(string(s)))
		}
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFollowUp(row rowScanner) (domain.FollowUp, error) {
	var (
		f                     domain.FollowUp
		typ, priority, status string
		outcome               *string
	)
	err := row.Scan(
		&f.ID, &f.Subject.LeadID, &f.Subject.ClientID, &typ, &f.Title, &f.Description, &f.Notes,
		&priority, &status, &f.ScheduledDate, &f.CreatedBy, &f.AssignedTo, &f.CreatedAt, &f.UpdatedAt,
		&f.CompletedAt, &outcome, &f.GeneratedFromID, &f.ArchivedAt,
	)
	if err != nil {
		return domain.FollowUp{}, err
	}
	f.Type = domain.Type(typ)
	f.Priority = domain.Priority(priority)
	f.Status = domain.Status(status)
	if outcome != nil {
		o := domain.Outcome(*outcome)
		f.Outcome = &o
	}
	return f, nil
}

func outcomeValue(o *domain.Outcome) *string {
	if o == nil {
		return nil
	}
	s := string(*o)
	return &s
}
