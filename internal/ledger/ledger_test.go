package ledger

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryTotalFollowsBreakdown(t *testing.T) {
	day := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	e := NewEntry("user-1", day)

	require.NoError(t, e.RecordCarbon(Breakdown{Transportation: 4.6, Energy: 1.25, Diet: 7.2, Shopping: 0.5, Total: 999}))
	assert.InDelta(t, 13.55, e.Carbon.Total, 1e-9)
	assert.Equal(t, e.Carbon.Sum(), e.Carbon.Total)

	require.NoError(t, e.RecordActivity(Activity{Type: ActivityMeal, Description: "lentil soup", CarbonImpact: 0.4, Timestamp: day}))
	require.NoError(t, e.RecordCarbon(Breakdown{Transportation: 0, Energy: 2, Diet: 2.5, Shopping: 0}))
	require.NoError(t, e.RecordActivity(Activity{Type: ActivityTransport, Description: "bike to work", Timestamp: day}))

	assert.Equal(t, e.Carbon.Transportation+e.Carbon.Energy+e.Carbon.Diet+e.Carbon.Shopping, e.Carbon.Total)
	assert.Len(t, e.Activities, 2)
	assert.NoError(t, e.Verify())
}

func TestRecordActivityValidation(t *testing.T) {
	e := NewEntry("user-1", time.Now())

	assert.Error(t, e.RecordActivity(Activity{Type: "flight", Description: "to Lisbon"}))
	assert.Error(t, e.RecordActivity(Activity{Type: ActivityMeal}))
	assert.Empty(t, e.Activities)
}

func TestRecordCarbonRejectsNegative(t *testing.T) {
	e := NewEntry("user-1", time.Now())
	require.NoError(t, e.RecordCarbon(Breakdown{Diet: 3}))

	assert.Error(t, e.RecordCarbon(Breakdown{Energy: -1}))
	assert.Equal(t, 3.0, e.Carbon.Total)
}

func TestRecordCompletionAccumulatesPoints(t *testing.T) {
	e := NewEntry("user-1", time.Now())
	e.RecordCompletion(Completion{ChallengeID: "a", PointsEarned: 50, CarbonSaved: 2.5})
	e.RecordCompletion(Completion{ChallengeID: "b", PointsEarned: 75, CarbonSaved: 4.2})

	assert.Equal(t, 125, e.PointsEarned)
	assert.InDelta(t, 6.7, e.CarbonSaved(), 1e-9)
}

func TestVerifyDetectsDrift(t *testing.T) {
	e := NewEntry("user-1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	e.Carbon = Breakdown{Transportation: 1, Energy: 1, Diet: 1, Shopping: 1, Total: 5}

	err := e.Verify()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistent))
}

func TestCloneIsIndependent(t *testing.T) {
	e := NewEntry("user-1", time.Now())
	e.RecordCompletion(Completion{ChallengeID: "a", PointsEarned: 10})

	c := e.Clone()
	c.RecordCompletion(Completion{ChallengeID: "b", PointsEarned: 10})

	assert.Len(t, e.Completions, 1)
	assert.Len(t, c.Completions, 2)
}

func TestCalendarHelpers(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Sofia")
	require.NoError(t, err)

	// Wednesday evening
	now := time.Date(2025, 3, 26, 22, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 3, 23, 0, 0, 0, 0, loc), WeekStart(now, loc))
	assert.Equal(t, time.Date(2025, 3, 26, 0, 0, 0, 0, loc), Day(now, loc))

	// Across the spring DST change on 30 March.
	assert.Equal(t, 1, DaysBetween(time.Date(2025, 3, 29, 23, 0, 0, 0, loc), time.Date(2025, 3, 30, 1, 0, 0, 0, loc), loc))
	assert.Equal(t, 2, DaysBetween(time.Date(2025, 3, 29, 12, 0, 0, 0, loc), time.Date(2025, 3, 31, 0, 5, 0, 0, loc), loc))
	assert.Equal(t, 0, DaysBetween(now, now.Add(time.Hour), loc))

	sunday := time.Date(2025, 3, 23, 9, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 3, 23, 0, 0, 0, 0, loc), WeekStart(sunday, loc))
}
