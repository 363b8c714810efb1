package domain

import (
	"testing"
	"time"
	_ "time/tzdata"

	"followup_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func sampleFollowUp() FollowUp {
	return FollowUp{
		ID:            uuid.New(),
		Subject:       LeadSubject(uuid.New()),
		Type:          TypeWhatsApp,
		Title:         "Intro",
		Priority:      PriorityLow,
		Status:        StatusScheduled,
		ScheduledDate: testNow.Add(-time.Hour),
		CreatedBy:     uuid.New(),
		AssignedTo:    uuid.New(),
	}
}

func TestResolveIsDeterministicForEveryOutcome(t *testing.T) {
	resolver := NewResolver(nil, time.UTC)
	f := sampleFollowUp()

	for _, outcome := range Outcomes {
		first, err := resolver.Resolve(outcome, f, testNow)
		require.NoError(t, err, outcome)
		second, err := resolver.Resolve(outcome, f, testNow)
		require.NoError(t, err, outcome)
		assert.Equal(t, first, second, outcome)
	}
}

func TestResolveSchedulesSuccessorFromRule(t *testing.T) {
	resolver := NewResolver(nil, time.UTC)
	f := sampleFollowUp()

	res, err := resolver.Resolve(OutcomeInterested, f, testNow)
	require.NoError(t, err)
	require.NotNil(t, res.Plan)

	assert.Equal(t, f.ID, res.Plan.GeneratedFromID)
	assert.Equal(t, testNow.AddDate(0, 0, 2), res.Plan.ScheduledDate)
	assert.Equal(t, TypeWhatsApp, res.Plan.Type, "type is inherited when the rule does not override it")
	assert.Equal(t, PriorityHigh, res.Plan.Priority)
	assert.Equal(t, f.AssignedTo, res.Plan.AssignedTo)
	assert.Equal(t, f.Subject.Key(), res.Plan.Subject.Key())
	assert.Contains(t, res.Plan.Title, "Interested")
	assert.False(t, res.Effect.Applies())
}

func TestResolveVeryInterestedForcesMeeting(t *testing.T) {
	res, err := NewResolver(nil, nil).Resolve(OutcomeVeryInterested, sampleFollowUp(), testNow)
	require.NoError(t, err)
	require.NotNil(t, res.Plan)
	assert.Equal(t, TypeMeeting, res.Plan.Type)
	assert.Equal(t, PriorityUrgent, res.Plan.Priority)
}

func TestResolveTerminalOutcomesNeverPlan(t *testing.T) {
	resolver := NewResolver(nil, time.UTC)
	f := sampleFollowUp()

	cases := map[Outcome]SubjectEffect{
		OutcomeNotInterested:      EffectNone,
		OutcomeNotInterestedFinal: EffectDisqualified,
		OutcomeWrongNumber:        EffectDisqualified,
		OutcomeConverted:          EffectConverted,
		OutcomeDealClosed:         EffectConverted,
	}
	for outcome, effect := range cases {
		res, err := resolver.Resolve(outcome, f, testNow)
		require.NoError(t, err, outcome)
		assert.Nil(t, res.Plan, outcome)
		assert.Equal(t, effect, res.Effect.Effect, outcome)
		assert.Equal(t, effect != EffectNone, res.Effect.Applies(), outcome)
	}
}

func TestResolveUnknownOutcome(t *testing.T) {
	_, err := NewResolver(nil, nil).Resolve(Outcome("call_me_maybe"), sampleFollowUp(), testNow)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnknownOutcome, apperr.GetKind(err))
}

func TestResolveUsesCanonicalZoneForCalendarDays(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)

	// DST starts on 2026-03-29; two calendar days later is 47 hours in absolute time.
	now := time.Date(2026, 3, 28, 10, 0, 0, 0, loc)
	res, err := NewResolver(nil, loc).Resolve(OutcomeInterested, sampleFollowUp(), now.UTC())
	require.NoError(t, err)

	due := res.Plan.ScheduledDate.In(loc)
	assert.Equal(t, 30, due.Day())
	assert.Equal(t, 10, due.Hour())
}
