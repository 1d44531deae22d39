package dose

import (
	"time"

	"github.com/AlisiaBaielli/TirAImisu/db"
	"github.com/AlisiaBaielli/TirAImisu/localtime"
)

// RunoutClock is the time of day a run-out date is shown at
var RunoutClock = localtime.Clock{Hour: 8}

// Runout is a projected stock depletion
type Runout struct {
	Date     time.Time
	DaysLeft int
}

// EstimateRunout projects when a medication's stock is exhausted, counting
// days from today's date. ok is false when the schedule yields no intake rate.
func EstimateRunout(m *db.Medication, today time.Time) (Runout, bool) {
	rate := rateFor(m.Schedule)
	if rate.perDay() <= 0 {
		return Runout{}, false
	}

	intakes := IntakesLeft(m.QuantityLeft, m.DosePerIntake)
	days := ceilDiv(intakes*rate.periodDays, rate.intakes)

	return Runout{
		Date:     RunoutClock.On(today.AddDate(0, 0, days)),
		DaysLeft: max(0, days),
	}, true
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}

	q := a / b
	if a%b != 0 {
		q++
	}

	return q
}
