package domain

import (
	"testing"
	"time"

	"followup_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInput() NewFollowUp {
	return NewFollowUp{
		Subject:       ClientSubject(uuid.New()),
		Type:          TypeCall,
		Title:         "  Call about renewal ",
		ScheduledDate: testNow.Add(24 * time.Hour),
		CreatedBy:     uuid.New(),
	}
}

func TestCreateBuildsScheduledFollowUp(t *testing.T) {
	m := NewMachine(nil)
	in := newInput()

	f, err := m.Create(in, testNow)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, f.ID)
	assert.Equal(t, StatusScheduled, f.Status)
	assert.Equal(t, "Call about renewal", f.Title)
	assert.Equal(t, PriorityMedium, f.Priority)
	assert.Equal(t, in.CreatedBy, f.AssignedTo, "assignee defaults to the creator")
	assert.Equal(t, testNow, f.CreatedAt)
	assert.Nil(t, f.Outcome)
	assert.Nil(t, f.CompletedAt)
}

func TestCreateValidation(t *testing.T) {
	m := NewMachine(nil)
	leadID, clientID := uuid.New(), uuid.New()

	cases := map[string]func(*NewFollowUp){
		"no subject":    func(in *NewFollowUp) { in.Subject = SubjectRef{} },
		"both subjects": func(in *NewFollowUp) { in.Subject = SubjectRef{LeadID: &leadID, ClientID: &clientID} },
		"bad type":      func(in *NewFollowUp) { in.Type = "fax" },
		"blank title":   func(in *NewFollowUp) { in.Title = "   " },
		"no date":       func(in *NewFollowUp) { in.ScheduledDate = time.Time{} },
		"bad priority":  func(in *NewFollowUp) { in.Priority = "critical" },
		"no creator":    func(in *NewFollowUp) { in.CreatedBy = uuid.Nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := newInput()
			mutate(&in)
			_, err := m.Create(in, testNow)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.GetKind(err))
		})
	}
}

func TestCompleteSetsOutcomeAndResolves(t *testing.T) {
	m := NewMachine(nil)
	f, err := m.Create(newInput(), testNow)
	require.NoError(t, err)
	f.Notes = "first call"

	done := testNow.Add(2 * time.Hour)
	c, err := m.Complete(f, OutcomeInterested, "wants pricing", done)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, c.Record.Status)
	require.NotNil(t, c.Record.CompletedAt)
	assert.Equal(t, done, *c.Record.CompletedAt)
	require.NotNil(t, c.Record.Outcome)
	assert.Equal(t, OutcomeInterested, *c.Record.Outcome)
	assert.Equal(t, "first call\nwants pricing", c.Record.Notes)
	require.NotNil(t, c.Resolution.Plan)
	assert.Equal(t, done.AddDate(0, 0, 2), c.Resolution.Plan.ScheduledDate)

	assert.Equal(t, StatusScheduled, f.Status, "input record is untouched")
	assert.Nil(t, f.Outcome)
}

func TestCompleteRejectsTerminalStatuses(t *testing.T) {
	m := NewMachine(nil)
	for _, status := range []Status{StatusCompleted, StatusCancelled} {
		f := sampleFollowUp()
		f.Status = status
		if status == StatusCompleted {
			at := testNow
			o := OutcomeBusy
			f.CompletedAt, f.Outcome = &at, &o
		}
		before := f.Clone()

		_, err := m.Complete(f, OutcomeInterested, "again", testNow)
		require.Error(t, err, status)
		assert.Equal(t, apperr.KindInvalidTransition, apperr.GetKind(err), status)
		assert.Equal(t, before, f, status)
	}
}

func TestCompleteUnknownOutcomeLeavesRecord(t *testing.T) {
	f := sampleFollowUp()
	_, err := NewMachine(nil).Complete(f, Outcome("nope"), "", testNow)
	assert.Equal(t, apperr.KindUnknownOutcome, apperr.GetKind(err))
	assert.Equal(t, StatusScheduled, f.Status)
}

func TestCompleteAllowsMissedAndInProgress(t *testing.T) {
	m := NewMachine(nil)
	for _, status := range []Status{StatusInProgress, StatusMissed} {
		f := sampleFollowUp()
		f.Status = status
		c, err := m.Complete(f, OutcomeNoAnswer, "", testNow)
		require.NoError(t, err, status)
		assert.Equal(t, StatusCompleted, c.Record.Status)
	}
}

func TestStartOnlyFromScheduled(t *testing.T) {
	m := NewMachine(nil)
	f := sampleFollowUp()

	started, err := m.Start(f, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, started.Status)

	_, err = m.Start(started, testNow)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.GetKind(err))
}

func TestCancel(t *testing.T) {
	m := NewMachine(nil)
	f := sampleFollowUp()

	cancelled, err := m.Cancel(f, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.Outcome)

	_, err = m.Cancel(cancelled, testNow)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.GetKind(err))
}

func TestRescheduleUpdatesFieldsAndRevivesMissed(t *testing.T) {
	m := NewMachine(nil)
	f := sampleFollowUp()
	f.Status = StatusMissed

	newDate := testNow.Add(48 * time.Hour)
	title := "Second try"
	priority := PriorityHigh
	assignee := uuid.New()
	next, err := m.Reschedule(f, Patch{ScheduledDate: &newDate, Title: &title, Priority: &priority, AssignedTo: &assignee}, testNow)
	require.NoError(t, err)

	assert.Equal(t, StatusScheduled, next.Status)
	assert.Equal(t, newDate, next.ScheduledDate)
	assert.Equal(t, "Second try", next.Title)
	assert.Equal(t, PriorityHigh, next.Priority)
	assert.Equal(t, assignee, next.AssignedTo)
	assert.Equal(t, testNow, next.UpdatedAt)
}

func TestRescheduleRejectsTerminalAndEmptyPatch(t *testing.T) {
	m := NewMachine(nil)
	newDate := testNow.Add(time.Hour)

	cancelled := sampleFollowUp()
	cancelled.Status = StatusCancelled
	_, err := m.Reschedule(cancelled, Patch{ScheduledDate: &newDate}, testNow)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.GetKind(err))

	_, err = m.Reschedule(sampleFollowUp(), Patch{}, testNow)
	assert.Equal(t, apperr.KindValidation, apperr.GetKind(err))

	bad := Type("fax")
	_, err = m.Reschedule(sampleFollowUp(), Patch{Type: &bad}, testNow)
	assert.Equal(t, apperr.KindValidation, apperr.GetKind(err))
}

func TestSpawnRequiresCompletedGenerator(t *testing.T) {
	m := NewMachine(nil)
	f := sampleFollowUp()
	res, err := m.Resolver().Resolve(OutcomeBusy, f, testNow)
	require.NoError(t, err)

	_, err = m.Spawn(f, *res.Plan, f.AssignedTo, testNow)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.GetKind(err))

	c, err := m.Complete(f, OutcomeBusy, "", testNow)
	require.NoError(t, err)
	successor, err := m.Spawn(c.Record, *c.Resolution.Plan, f.AssignedTo, testNow)
	require.NoError(t, err)

	require.NotNil(t, successor.GeneratedFromID)
	assert.Equal(t, f.ID, *successor.GeneratedFromID)
	assert.Equal(t, StatusScheduled, successor.Status)
	assert.Equal(t, testNow.AddDate(0, 0, 1), successor.ScheduledDate)
	assert.NotEqual(t, f.ID, successor.ID)
}

func TestCheckInvariantsCatchesHalfCompletedRecords(t *testing.T) {
	f := sampleFollowUp()
	o := OutcomeBusy
	f.Outcome = &o
	assert.Equal(t, apperr.KindInvalidTransition, apperr.GetKind(f.CheckInvariants()))

	f = sampleFollowUp()
	f.Status = StatusCompleted
	assert.Error(t, f.CheckInvariants())
}
