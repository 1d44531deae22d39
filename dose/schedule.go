// Package dose derives concrete dose events and stock run-out estimates from
// a stored medication schedule.
package dose

import (
	"math"
	"strings"
	"time"

	"github.com/AlisiaBaielli/TirAImisu/db"
	"github.com/AlisiaBaielli/TirAImisu/localtime"
)

// DefaultClock is used when a schedule names no usable time of day
var DefaultClock = localtime.Clock{Hour: 8}

// MaxIntakes caps the intakes counted from a stock level. Larger stocks are
// treated as this many.
const MaxIntakes = 100000

// Plan is how a schedule repeats: first dose at Anchor on the start date,
// then every StepDays calendar days. Fallback marks a schedule that named no
// usable time of day.
type Plan struct {
	Anchor   localtime.Clock
	StepDays int
	Fallback bool
}

// PlanFor derives the repetition plan of a schedule. Unknown, as-needed and
// malformed schedules fall back to once a day at 08:00.
func PlanFor(s db.Schedule) Plan {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case db.ScheduleDaily:
		if len(s.Times) > 0 {
			if c, err := localtime.ParseClock(s.Times[0]); err == nil {
				return Plan{Anchor: c, StepDays: 1}
			}
		}

	case db.ScheduleWeekly:
		value := s.Time
		if value == "" && len(s.Times) > 0 {
			value = s.Times[0]
		}

		if c, err := localtime.ParseClock(value); err == nil {
			return Plan{Anchor: c, StepDays: 7}
		}
	}

	return Plan{Anchor: DefaultClock, StepDays: 1, Fallback: true}
}

// intakeRate is intakes per period of days. Kept as a ratio so weekly
// schedules divide exactly.
type intakeRate struct {
	intakes    int
	periodDays int
}

func (r intakeRate) perDay() float64 {
	if r.periodDays <= 0 {
		return 0
	}

	return float64(r.intakes) / float64(r.periodDays)
}

// rateFor counts intakes per day: the number of listed times for daily
// schedules, the number of listed times over seven days for weekly schedules,
// and one a day otherwise.
func rateFor(s db.Schedule) intakeRate {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case db.ScheduleDaily:
		return intakeRate{intakes: max(1, len(s.Times)), periodDays: 1}

	case db.ScheduleWeekly:
		count := len(s.Times)
		if count == 0 && s.Time != "" {
			count = 1
		}

		return intakeRate{intakes: max(1, count), periodDays: 7}
	}

	return intakeRate{intakes: 1, periodDays: 1}
}

// IntakesLeft is how many whole doses the remaining stock covers, at most
// MaxIntakes. A dose below one unit counts as one unit.
func IntakesLeft(quantityLeft, dosePerIntake float64) int {
	if !(quantityLeft > 0) {
		return 0
	}

	if math.IsNaN(dosePerIntake) || dosePerIntake < 1 {
		dosePerIntake = 1
	}

	intakes := math.Floor(quantityLeft / dosePerIntake)
	if intakes >= MaxIntakes {
		return MaxIntakes
	}

	return int(intakes)
}

// StartDay resolves a medication's start date at local midnight in loc. A
// missing or unparseable start date means the medication starts on now's date.
func StartDay(m *db.Medication, now time.Time, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}

	if m.StartDate != "" {
		if t, err := localtime.Parse(m.StartDate, loc); err == nil {
			return localtime.StartOfDay(t), true
		}
	}

	return localtime.StartOfDay(now.In(loc)), false
}
