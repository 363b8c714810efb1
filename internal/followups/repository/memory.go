package repository

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"followup_backend/internal/followups/domain"
	"followup_backend/platform/apperr"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded Store used by tests and local tooling.
// Its conditional updates give the same per-record guarantees as PGStore.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]domain.FollowUp
}

var (
	_ Store     = (*MemoryStore)(nil)
	_ Completer = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]domain.FollowUp)}
}

// Create inserts a follow-up. A second successor for the same generator is
// rejected like the unique index in Postgres does.
func (s *MemoryStore) Create(ctx context.Context, f domain.FollowUp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkInsertLocked(f); err != nil {
		return err
	}
	s.records[f.ID] = f.Clone()
	return nil
}

func (s *MemoryStore) checkInsertLocked(f domain.FollowUp) error {
	if _, exists := s.records[f.ID]; exists {
		return apperr.Conflict("follow-up already exists")
	}
	if f.GeneratedFromID != nil {
		for _, existing := range s.records {
			if existing.GeneratedFromID != nil && *existing.GeneratedFromID == *f.GeneratedFromID {
				return apperr.Conflict("follow-up already has a successor")
			}
		}
	}
	return nil
}

// FindByID returns a follow-up by id.
func (s *MemoryStore) FindByID(ctx context.Context, id uuid.UUID) (domain.FollowUp, error) {
	if err := ctx.Err(); err != nil {
		return domain.FollowUp{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.records[id]
	if !ok {
		return domain.FollowUp{}, apperr.NotFound(followUpNotFoundMsg)
	}
	return f.Clone(), nil
}

// Find lists follow-ups matching filter, ordered by scheduled date.
func (s *MemoryStore) Find(ctx context.Context, filter Filter) ([]domain.FollowUp, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}

	s.mu.Lock()
	items := make([]domain.FollowUp, 0)
	for _, f := range s.records {
		if matches(f, filter, now) {
			items = append(items, f.Clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].ScheduledDate.Equal(items[j].ScheduledDate) {
			return items[i].ScheduledDate.Before(items[j].ScheduledDate)
		}
		return items[i].ID.String() < items[j].ID.String()
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultFindLimit
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// UpdateIfStatus writes f when the stored record is live and has status expected.
func (s *MemoryStore) UpdateIfStatus(ctx context.Context, f domain.FollowUp, expected domain.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.prepareUpdateLocked(f, expected)
	if err != nil {
		return err
	}
	s.records[f.ID] = next
	return nil
}

// CompleteWithSuccessor writes the completed record and its successor under
// one lock. Nothing is written when either check fails.
func (s *MemoryStore) CompleteWithSuccessor(ctx context.Context, completed domain.FollowUp, expected domain.Status, successor *domain.FollowUp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.prepareUpdateLocked(completed, expected)
	if err != nil {
		return err
	}
	if successor != nil {
		if err := s.checkInsertLocked(*successor); err != nil {
			return err
		}
	}
	s.records[completed.ID] = next
	if successor != nil {
		s.records[successor.ID] = successor.Clone()
	}
	return nil
}

// prepareUpdateLocked returns the record to store for f, keeping the fields
// an update may not change.
func (s *MemoryStore) prepareUpdateLocked(f domain.FollowUp, expected domain.Status) (domain.FollowUp, error) {
	current, ok := s.records[f.ID]
	if !ok {
		return domain.FollowUp{}, apperr.NotFound(followUpNotFoundMsg)
	}
	if current.IsArchived() {
		return domain.FollowUp{}, apperr.InvalidTransition(archivedMsg)
	}
	if current.Status != expected {
		return domain.FollowUp{}, apperr.InvalidTransition("follow-up is " + string(current.Status) + ", expected " + string(expected))
	}

	next := f.Clone()
	next.Subject = current.Subject
	next.CreatedBy = current.CreatedBy
	next.CreatedAt = current.CreatedAt
	next.GeneratedFromID = current.GeneratedFromID
	next.ArchivedAt = current.ArchivedAt
	return next, nil
}

// SoftDelete archives a live follow-up.
func (s *MemoryStore) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.records[id]
	if !ok {
		return apperr.NotFound(followUpNotFoundMsg)
	}
	if f.IsArchived() {
		return apperr.Conflict(alreadyArchivedMsg)
	}
	f.ArchivedAt = &at
	f.UpdatedAt = at
	s.records[id] = f
	return nil
}

// Restore un-archives a follow-up.
func (s *MemoryStore) Restore(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.records[id]
	if !ok {
		return apperr.NotFound(followUpNotFoundMsg)
	}
	if !f.IsArchived() {
		return apperr.Conflict("follow-up is not archived")
	}
	f.ArchivedAt = nil
	f.UpdatedAt = at
	s.records[id] = f
	return nil
}

// Purge deletes an archived follow-up. Successors keep existing with their
// back-reference cleared.
func (s *MemoryStore) Purge(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.records[id]
	if !ok {
		return apperr.NotFound(followUpNotFoundMsg)
	}
	if !f.IsArchived() {
		return apperr.NotArchived(notArchivedMsg)
	}
	delete(s.records, id)
	for key, other := range s.records {
		if other.GeneratedFromID != nil && *other.GeneratedFromID == id {
			other.GeneratedFromID = nil
			s.records[key] = other
		}
	}
	return nil
}

func matches(f domain.FollowUp, filter Filter, now time.Time) bool {
	if f.IsArchived() != filter.Archived {
		return false
	}
	if filter.AssignedTo != nil && f.AssignedTo != *filter.AssignedTo {
		return false
	}
	if filter.CreatedBy != nil && f.CreatedBy != *filter.CreatedBy {
		return false
	}
	if filter.LeadID != nil && (f.Subject.LeadID == nil || *f.Subject.LeadID != *filter.LeadID) {
		return false
	}
	if filter.ClientID != nil && (f.Subject.ClientID == nil || *f.Subject.ClientID != *filter.ClientID) {
		return false
	}
	if filter.GeneratedFromID != nil && (f.GeneratedFromID == nil || *f.GeneratedFromID != *filter.GeneratedFromID) {
		return false
	}
	if len(filter.Types) > 0 && !slices.Contains(filter.Types, f.Type) {
		return false
	}
	if len(filter.Priorities) > 0 && !slices.Contains(filter.Priorities, f.Priority) {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, f.DisplayStatus(now)) {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		if !strings.Contains(strings.ToLower(f.Title), search) && !strings.Contains(strings.ToLower(f.Description), search) {
			return false
		}
	}
	if filter.From != nil && f.ScheduledDate.Before(*filter.From) {
		return false
	}
	if filter.To != nil && f.ScheduledDate.After(*filter.To) {
		return false
	}
	if filter.After != nil && !filter.After.after(f) {
		return false
	}
	return true
}
