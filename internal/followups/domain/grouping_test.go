package domain

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id uuid.UUID, title string) FollowUp {
	return FollowUp{ID: id, Title: title, Status: StatusScheduled, Type: TypeCall, ScheduledDate: testNow}
}

func TestDedupeKeepsLastOccurrence(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	input := []FollowUp{record(id1, "a"), record(id2, "b"), record(id1, "c")}

	out, removed := Dedupe(input)

	require.Len(t, out, 2)
	assert.Equal(t, 1, removed)
	assert.Equal(t, id2, out[0].ID)
	assert.Equal(t, "b", out[0].Title)
	assert.Equal(t, id1, out[1].ID)
	assert.Equal(t, "c", out[1].Title)
}

func TestDedupeWithoutDuplicates(t *testing.T) {
	input := []FollowUp{record(uuid.New(), "a"), record(uuid.New(), "b")}
	out, removed := Dedupe(input)
	assert.Equal(t, input, out)
	assert.Zero(t, removed)

	out, removed = Dedupe(nil)
	assert.Empty(t, out)
	assert.Zero(t, removed)
}

func withSubject(f FollowUp, s SubjectRef) FollowUp {
	f.Subject = s
	return f
}

func completed(f FollowUp) FollowUp {
	f.Status = StatusCompleted
	at := f.ScheduledDate
	o := OutcomeInterested
	f.CompletedAt, f.Outcome = &at, &o
	return f
}

func TestGroupWithScheduledWorkSortsFirst(t *testing.T) {
	done := ClientSubject(uuid.MustParse("00000000-0000-0000-0000-000000000001"))
	active := ClientSubject(uuid.MustParse("ffffffff-0000-0000-0000-000000000001"))

	old := completed(withSubject(record(uuid.New(), "old"), done))
	old.ScheduledDate = testNow.Add(-72 * time.Hour)
	upcoming := withSubject(record(uuid.New(), "tomorrow"), active)
	upcoming.ScheduledDate = testNow.Add(24 * time.Hour)

	groups := GroupBySubject([]FollowUp{old, upcoming}, testNow)

	require.Len(t, groups, 2)
	assert.Equal(t, active.Key(), groups[0].Key)
	assert.Equal(t, done.Key(), groups[1].Key)
	assert.True(t, groups[0].HasScheduled())
	_, hasDue := groups[1].NextDue()
	assert.False(t, hasDue)
}

func TestCompletedItemSortsAfterScheduledRegardlessOfDate(t *testing.T) {
	subject := LeadSubject(uuid.New())
	early := completed(withSubject(record(uuid.New(), "done"), subject))
	early.ScheduledDate = testNow.Add(-10 * 24 * time.Hour)
	later := withSubject(record(uuid.New(), "next"), subject)
	later.ScheduledDate = testNow.Add(5 * 24 * time.Hour)

	groups := GroupBySubject([]FollowUp{early, later}, testNow)

	require.Len(t, groups, 1)
	items := groups[0].Items
	require.Len(t, items, 2)
	assert.Equal(t, later.ID, items[0].ID)
	assert.Equal(t, early.ID, items[1].ID)
	assert.Equal(t, DisplayCompleted, items[1].Display)
}

func TestItemsSortByStatusRankThenDate(t *testing.T) {
	subject := LeadSubject(uuid.New())
	mk := func(status Status, offset time.Duration) FollowUp {
		f := withSubject(record(uuid.New(), string(status)), subject)
		f.Status = status
		f.ScheduledDate = testNow.Add(offset)
		if status == StatusCompleted {
			return completed(f)
		}
		return f
	}

	overdue := mk(StatusScheduled, -time.Hour)
	scheduledLate := mk(StatusScheduled, 48*time.Hour)
	scheduledSoon := mk(StatusScheduled, time.Hour)
	inProgress := mk(StatusInProgress, 2*time.Hour)
	missed := mk(StatusMissed, -48*time.Hour)
	cancelled := mk(StatusCancelled, time.Hour)
	done := mk(StatusCompleted, -time.Hour)

	groups := GroupBySubject([]FollowUp{done, cancelled, missed, overdue, inProgress, scheduledLate, scheduledSoon}, testNow)
	require.Len(t, groups, 1)

	var got []uuid.UUID
	for _, item := range groups[0].Items {
		got = append(got, item.ID)
	}
	want := []uuid.UUID{scheduledSoon.ID, scheduledLate.ID, inProgress.ID, overdue.ID, missed.ID, done.ID, cancelled.ID}
	assert.Equal(t, want, got)

	c := groups[0].Counts
	assert.Equal(t, 7, c.Total)
	assert.Equal(t, 2, c.Scheduled)
	assert.Equal(t, 1, c.Overdue)
	assert.Equal(t, 1, c.Completed)
	assert.Equal(t, 1, c.Missed)
}

func TestGroupsWithScheduledWorkOrderBySoonestOpenDate(t *testing.T) {
	a := LeadSubject(uuid.New())
	b := LeadSubject(uuid.New())
	c := LeadSubject(uuid.New())

	aItem := withSubject(record(uuid.New(), "a"), a)
	aItem.ScheduledDate = testNow.Add(72 * time.Hour)
	bItem := withSubject(record(uuid.New(), "b"), b)
	bItem.ScheduledDate = testNow.Add(24 * time.Hour)
	// c has only in-progress work: open but not scheduled.
	cItem := withSubject(record(uuid.New(), "c"), c)
	cItem.Status = StatusInProgress
	cItem.ScheduledDate = testNow.Add(time.Hour)

	groups := GroupBySubject([]FollowUp{cItem, aItem, bItem}, testNow)

	require.Len(t, groups, 3)
	assert.Equal(t, b.Key(), groups[0].Key)
	assert.Equal(t, a.Key(), groups[1].Key)
	assert.Equal(t, c.Key(), groups[2].Key)
}

func TestRecordsWithoutSubjectShareUnassignedGroup(t *testing.T) {
	groups := GroupBySubject([]FollowUp{record(uuid.New(), "x"), record(uuid.New(), "y")}, testNow.Add(-time.Hour))
	require.Len(t, groups, 1)
	assert.Equal(t, UnassignedGroupKey, groups[0].Key)
	assert.Equal(t, 2, groups[0].Counts.Total)
}

func TestDisplayStatusDerivesOverdue(t *testing.T) {
	f := record(uuid.New(), "x")
	assert.Equal(t, DisplayOverdue, f.DisplayStatus(testNow.Add(time.Minute)))
	assert.Equal(t, DisplayScheduled, f.DisplayStatus(testNow))

	f.Status = StatusMissed
	assert.Equal(t, DisplayMissed, f.DisplayStatus(testNow.Add(time.Hour)))
}

func TestPaginate(t *testing.T) {
	groups := make([]Group, 5)
	for i := range groups {
		groups[i].Key = string(rune('a' + i))
	}

	page, meta := Paginate(groups, 2, 2)
	assert.Equal(t, Pagination{Page: 2, PageSize: 2, TotalItems: 5, TotalPages: 3}, meta)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].Key)

	page, meta = Paginate(groups, 9, 2)
	assert.Empty(t, page)
	assert.Equal(t, 3, meta.TotalPages)

	_, meta = Paginate(groups, 0, 1000)
	assert.Equal(t, 1, meta.Page)
	assert.Equal(t, MaxPageSize, meta.PageSize)
}

func TestPaginateFarPastTheEndIsEmpty(t *testing.T) {
	groups := make([]Group, 3)

	for _, page := range []int{100000000000000000, math.MaxInt} {
		out, meta := Paginate(groups, page, MaxPageSize)
		assert.Empty(t, out)
		assert.Equal(t, page, meta.Page)
		assert.Equal(t, 1, meta.TotalPages)
	}

	out, meta := Paginate(nil, 1, 10)
	assert.Empty(t, out)
	assert.Zero(t, meta.TotalPages)
}

func TestSummarize(t *testing.T) {
	open := record(uuid.New(), "open")
	open.ScheduledDate = testNow.Add(time.Hour)
	late := record(uuid.New(), "late")
	late.ScheduledDate = testNow.Add(-time.Hour)

	c := Summarize([]FollowUp{open, late, completed(record(uuid.New(), "done"))}, testNow)
	assert.Equal(t, Counts{Total: 3, Scheduled: 1, Overdue: 1, Completed: 1}, c)
}
