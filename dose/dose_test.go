package dose

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlisiaBaielli/TirAImisu/db"
	"github.com/AlisiaBaielli/TirAImisu/localtime"
)

var (
	loc = time.UTC
	now = time.Date(2025, 11, 10, 7, 45, 0, 0, loc)
)

func daily(times ...string) db.Schedule {
	return db.Schedule{Type: db.ScheduleDaily, Times: times}
}

func project(m *db.Medication) []Event {
	return slices.Collect(Occurrences(m, now, loc))
}

func TestPlanFor(t *testing.T) {
	tests := []struct {
		name     string
		schedule db.Schedule
		want     Plan
	}{
		{"daily first time", daily("20:00", "08:00"), Plan{Anchor: localtime.Clock{Hour: 20}, StepDays: 1}},
		{"weekly time", db.Schedule{Type: "weekly", Day: "monday", Time: "09:30"}, Plan{Anchor: localtime.Clock{Hour: 9, Minute: 30}, StepDays: 7}},
		{"weekly times", db.Schedule{Type: "Weekly", Times: []string{"18:00"}}, Plan{Anchor: localtime.Clock{Hour: 18}, StepDays: 7}},
		{"as needed", db.Schedule{Type: db.ScheduleAsNeeded, MaxPerDay: 3}, Plan{Anchor: DefaultClock, StepDays: 1, Fallback: true}},
		{"empty", db.Schedule{}, Plan{Anchor: DefaultClock, StepDays: 1, Fallback: true}},
		{"malformed daily", daily("half past"), Plan{Anchor: DefaultClock, StepDays: 1, Fallback: true}},
		{"daily without times", daily(), Plan{Anchor: DefaultClock, StepDays: 1, Fallback: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlanFor(tt.schedule))
		})
	}
}

func TestProjectNoStockYieldsNothing(t *testing.T) {
	for _, qty := range []float64{0, -3} {
		m := &db.Medication{DrugName: "Aspirin", QuantityLeft: qty, DosePerIntake: 1, Schedule: daily("08:00"), StartDate: "2025-11-10"}
		assert.Empty(t, project(m))
		assert.Equal(t, 0, OccurrenceCount(m))
	}
}

func TestOccurrenceCountMatchesIntakes(t *testing.T) {
	tests := []struct {
		qty, dose float64
		want      int
	}{
		{30, 1, 30},
		{29, 2, 14},
		{15, 2, 7},
		{10, 0, 10},
		{0.5, 1, 1},
	}

	for _, tt := range tests {
		m := &db.Medication{DrugName: "X", QuantityLeft: tt.qty, DosePerIntake: tt.dose, Schedule: daily("08:00")}
		assert.Equal(t, tt.want, OccurrenceCount(m))
		assert.Len(t, project(m), tt.want)
		if tt.qty >= max(1, tt.dose) {
			assert.Equal(t, IntakesLeft(tt.qty, tt.dose), OccurrenceCount(m))
		}
	}
}

func TestProjectDaily(t *testing.T) {
	m := &db.Medication{DrugName: "Aspirin", Strength: "100mg", QuantityLeft: 3, DosePerIntake: 1, Schedule: daily("08:00"), StartDate: "2025-11-10"}

	events := project(m)
	require.Len(t, events, 3)

	for i, ev := range events {
		start := time.Date(2025, 11, 10+i, 8, 0, 0, 0, loc)
		assert.Equal(t, start, ev.Start)
		assert.Equal(t, start.Add(10*time.Minute), ev.End)
		assert.Equal(t, "Aspirin 100mg", ev.Title)
	}

	assert.Equal(t, events, project(m), "projection must be stable across calls")
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestProjectWeekly(t *testing.T) {
	m := &db.Medication{DrugName: "Methotrexate", QuantityLeft: 2, DosePerIntake: 1, Schedule: db.Schedule{Type: "weekly", Day: "monday", Time: "09:00"}, StartDate: "2025-11-10"}

	events := project(m)
	require.Len(t, events, 2)
	assert.Equal(t, time.Date(2025, 11, 17, 9, 0, 0, 0, loc), events[1].Start)
}

func TestProjectMissingStartDateUsesToday(t *testing.T) {
	m := &db.Medication{DrugName: "Aspirin", QuantityLeft: 1, DosePerIntake: 1, Schedule: daily("21:15"), StartDate: "soon"}

	events := project(m)
	require.Len(t, events, 1)
	assert.Equal(t, time.Date(2025, 11, 10, 21, 15, 0, 0, loc), events[0].Start)
}

func TestOccurrencesIsLazy(t *testing.T) {
	m := &db.Medication{DrugName: "Aspirin", QuantityLeft: 1000, DosePerIntake: 1, Schedule: daily("08:00"), StartDate: "2025-11-10"}

	seen := 0
	for range Occurrences(m, now, loc) {
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)

	between := Between(m, now, loc, now, now.Add(48*time.Hour))
	require.Len(t, between, 2)
	assert.Equal(t, time.Date(2025, 11, 11, 8, 0, 0, 0, loc), between[1].Start)
}

func TestEstimateRunout(t *testing.T) {
	today := time.Date(2025, 11, 10, 15, 20, 0, 0, loc)

	tests := []struct {
		name     string
		qty      float64
		dose     float64
		schedule db.Schedule
		days     int
	}{
		{"evenly divides", 30, 1, daily("08:00"), 30},
		{"odd stock", 31, 1, daily("08:00"), 31},
		{"two per intake", 29, 2, daily("08:00"), 14},
		{"fifteen by two", 15, 2, daily("08:00"), 7},
		{"twice daily rounds up", 5, 1, daily("08:00", "20:00"), 3},
		{"weekly", 3, 1, db.Schedule{Type: "weekly", Day: "monday", Time: "09:00"}, 21},
		{"as needed fallback", 4, 1, db.Schedule{Type: db.ScheduleAsNeeded, MaxPerDay: 3}, 4},
		{"empty", 0, 1, daily("08:00"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &db.Medication{QuantityLeft: tt.qty, DosePerIntake: tt.dose, Schedule: tt.schedule}

			r, ok := EstimateRunout(m, today)
			require.True(t, ok)
			assert.Equal(t, tt.days, r.DaysLeft)
			assert.Equal(t, time.Date(2025, 11, 10+tt.days, 8, 0, 0, 0, loc), r.Date)
		})
	}
}

func TestRunoutAndProjectionAgree(t *testing.T) {
	m := &db.Medication{QuantityLeft: 20, DosePerIntake: 2, Schedule: daily("08:00"), StartDate: "2025-11-10"}

	r, ok := EstimateRunout(m, now)
	require.True(t, ok)
	assert.Equal(t, OccurrenceCount(m), r.DaysLeft)
	assert.InDelta(t, 1.0, rateFor(m.Schedule).perDay(), 1e-9)
	assert.InDelta(t, 1.0/7.0, rateFor(db.Schedule{Type: "weekly", Time: "09:00"}).perDay(), 1e-9)
}

func TestIntakesLeftIsBounded(t *testing.T) {
	assert.Equal(t, MaxIntakes, IntakesLeft(1e300, 1))
	assert.Equal(t, MaxIntakes, IntakesLeft(math.Inf(1), 2))
	assert.Equal(t, 0, IntakesLeft(math.NaN(), 1))
	assert.Equal(t, 5, IntakesLeft(5, math.NaN()))

	m := &db.Medication{QuantityLeft: 1e300, DosePerIntake: 1, Schedule: daily("08:00"), StartDate: "2025-11-10"}
	assert.Equal(t, MaxIntakes, OccurrenceCount(m))

	r, ok := EstimateRunout(m, now)
	require.True(t, ok)
	assert.Equal(t, MaxIntakes, r.DaysLeft)
	assert.True(t, r.Date.After(now), "a huge stock runs out in the future")
}
