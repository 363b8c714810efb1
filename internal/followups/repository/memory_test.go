package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"followup_backend/internal/followups/domain"
	"followup_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storeNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *MemoryStore) domain.FollowUp {
	t.Helper()
	f := domain.FollowUp{
		ID:            uuid.New(),
		Subject:       domain.LeadSubject(uuid.New()),
		Type:          domain.TypeCall,
		Title:         "Call",
		Priority:      domain.PriorityMedium,
		Status:        domain.StatusScheduled,
		ScheduledDate: storeNow.Add(time.Hour),
		CreatedBy:     uuid.New(),
		AssignedTo:    uuid.New(),
		CreatedAt:     storeNow,
		UpdatedAt:     storeNow,
	}
	require.NoError(t, s.Create(context.Background(), f))
	return f
}

func TestConcurrentConditionalUpdatesOnlyOneWins(t *testing.T) {
	s := NewMemoryStore()
	f := seed(t, s)
	machine := domain.NewMachine(nil)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := machine.Complete(f, domain.OutcomeBusy, "", storeNow)
			if err != nil {
				results <- err
				return
			}
			results <- s.UpdateIfStatus(context.Background(), c.Record, f.Status)
		}()
	}
	wg.Wait()
	close(results)

	var ok, conflicts int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case apperr.Is(err, apperr.KindInvalidTransition):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflicts)

	stored, err := s.FindByID(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestArchiveThenPurge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	f := seed(t, s)

	err := s.Purge(ctx, f.ID)
	assert.Equal(t, apperr.KindNotArchived, apperr.GetKind(err))

	require.NoError(t, s.SoftDelete(ctx, f.ID, storeNow))
	assert.Equal(t, apperr.KindConflict, apperr.GetKind(s.SoftDelete(ctx, f.ID, storeNow)))

	live, err := s.Find(ctx, Filter{Now: storeNow})
	require.NoError(t, err)
	assert.Empty(t, live)
	archived, err := s.Find(ctx, Filter{Now: storeNow, Archived: true})
	require.NoError(t, err)
	assert.Len(t, archived, 1)

	require.NoError(t, s.Purge(ctx, f.ID))
	_, err = s.FindByID(ctx, f.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.GetKind(err))
	assert.Equal(t, apperr.KindNotFound, apperr.GetKind(s.Purge(ctx, f.ID)))
}

func TestRestoreAndArchivedRecordsRejectUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	f := seed(t, s)

	require.NoError(t, s.SoftDelete(ctx, f.ID, storeNow))
	f.Title = "changed"
	assert.Equal(t, apperr.KindInvalidTransition, apperr.GetKind(s.UpdateIfStatus(ctx, f, domain.StatusScheduled)))

	require.NoError(t, s.Restore(ctx, f.ID, storeNow))
	assert.Equal(t, apperr.KindConflict, apperr.GetKind(s.Restore(ctx, f.ID, storeNow)))
	require.NoError(t, s.UpdateIfStatus(ctx, f, domain.StatusScheduled))

	stored, err := s.FindByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", stored.Title)
	assert.Nil(t, stored.ArchivedAt)
}

func TestCreateRejectsSecondSuccessor(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	generator := seed(t, s)

	first := domain.FollowUp{ID: uuid.New(), Status: domain.StatusScheduled, GeneratedFromID: &generator.ID}
	second := domain.FollowUp{ID: uuid.New(), Status: domain.StatusScheduled, GeneratedFromID: &generator.ID}

	require.NoError(t, s.Create(ctx, first))
	assert.Equal(t, apperr.KindConflict, apperr.GetKind(s.Create(ctx, second)))
}

func TestFindFiltersByDisplayStatusAndScope(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	upcoming := seed(t, s)
	late := seed(t, s)

	late.ScheduledDate = storeNow.Add(-time.Hour)
	require.NoError(t, s.UpdateIfStatus(ctx, late, domain.StatusScheduled))

	overdue, err := s.Find(ctx, Filter{Statuses: []domain.DisplayStatus{domain.DisplayOverdue}, Now: storeNow})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)

	mine, err := s.Find(ctx, Filter{AssignedTo: &upcoming.AssignedTo, Now: storeNow})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, upcoming.ID, mine[0].ID)

	ordered, err := s.Find(ctx, Filter{Now: storeNow})
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, late.ID, ordered[0].ID)
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStore().Find(ctx, Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindResumesAfterCursor(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	// All rows share a date, so the id breaks ties.
	for range 5 {
		seed(t, s)
	}

	var seen []uuid.UUID
	filter := Filter{Limit: 2, Now: storeNow}
	for {
		page, err := s.Find(ctx, filter)
		require.NoError(t, err)
		for _, f := range page {
			seen = append(seen, f.ID)
		}
		if len(page) < filter.Limit {
			break
		}
		filter.After = CursorAt(page[len(page)-1])
	}

	all, err := s.Find(ctx, Filter{Now: storeNow})
	require.NoError(t, err)
	require.Len(t, seen, 5)
	for i, f := range all {
		assert.Equal(t, f.ID, seen[i])
	}
}

func TestFindSearchIsLiteral(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s)

	for _, term := range []string{"%", "_all", "CALL"} {
		found, err := s.Find(ctx, Filter{Search: term, Now: storeNow})
		require.NoError(t, err)
		if term == "CALL" {
			assert.Len(t, found, 1, "search ignores case")
		} else {
			assert.Empty(t, found, "wildcard characters match literally: %q", term)
		}
	}
}

func completeWithSuccessor(t *testing.T, f domain.FollowUp) (domain.FollowUp, domain.FollowUp) {
	t.Helper()
	machine := domain.NewMachine(nil)
	c, err := machine.Complete(f, domain.OutcomeNeedsTime, "", storeNow)
	require.NoError(t, err)
	require.NotNil(t, c.Resolution.Plan)
	successor, err := machine.Spawn(c.Record, *c.Resolution.Plan, f.CreatedBy, storeNow)
	require.NoError(t, err)
	return c.Record, successor
}

func TestCompleteWithSuccessorWritesBoth(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	f := seed(t, s)
	completed, successor := completeWithSuccessor(t, f)

	require.NoError(t, s.CompleteWithSuccessor(ctx, completed, f.Status, &successor))

	stored, err := s.FindByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	next, err := s.FindByID(ctx, successor.ID)
	require.NoError(t, err)
	require.NotNil(t, next.GeneratedFromID)
	assert.Equal(t, f.ID, *next.GeneratedFromID)
}

func TestCompleteWithSuccessorWritesNeitherOnStatusMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	f := seed(t, s)
	completed, successor := completeWithSuccessor(t, f)

	err := s.CompleteWithSuccessor(ctx, completed, domain.StatusInProgress, &successor)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.GetKind(err))

	_, err = s.FindByID(ctx, successor.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.GetKind(err))
	stored, err := s.FindByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, stored.Status)
}

func TestCompleteWithSuccessorWritesNeitherOnSuccessorConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	f := seed(t, s)
	completed, successor := completeWithSuccessor(t, f)
	require.NoError(t, s.Create(ctx, domain.FollowUp{ID: uuid.New(), Status: domain.StatusScheduled, GeneratedFromID: &f.ID}))

	err := s.CompleteWithSuccessor(ctx, completed, f.Status, &successor)
	assert.Equal(t, apperr.KindConflict, apperr.GetKind(err))

	stored, err := s.FindByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, stored.Status)
	assert.Nil(t, stored.Outcome)
}
