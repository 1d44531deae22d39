package dose

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AlisiaBaielli/TirAImisu/db"
)

// Length of every projected dose event
const Length = 10 * time.Minute

// Event is one projected intake of a medication
type Event struct {
	ID           string    `json:"id"`
	MedicationID uuid.UUID `json:"medication_id"`
	Title        string    `json:"title"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

// OccurrenceCount is the number of doses left in stock, at least one while
// any stock remains.
func OccurrenceCount(m *db.Medication) int {
	if !(m.QuantityLeft > 0) {
		return 0
	}

	return max(1, IntakesLeft(m.QuantityLeft, m.DosePerIntake))
}

// Occurrences lazily yields the dose events of a medication in start order.
// The sequence is finite and can be ranged over any number of times.
func Occurrences(m *db.Medication, now time.Time, loc *time.Location) iter.Seq[Event] {
	count := OccurrenceCount(m)
	plan := PlanFor(m.Schedule)
	day, _ := StartDay(m, now, loc)
	first := plan.Anchor.On(day)
	title := m.DisplayName()
	slug := eventSlug(m.DrugName)

	return func(yield func(Event) bool) {
		for i := 0; i < count; i++ {
			start := first.AddDate(0, 0, i*plan.StepDays)
			ev := Event{
				ID:           fmt.Sprintf("dose:%s:%d:%d", slug, i, start.Unix()),
				MedicationID: m.ID,
				Title:        title,
				Start:        start,
				End:          start.Add(Length),
			}

			if !yield(ev) {
				return
			}
		}
	}
}

// Between collects the dose events of a medication starting in [from, to].
// Iteration stops at the first event past to.
func Between(m *db.Medication, now time.Time, loc *time.Location, from, to time.Time) []Event {
	var events []Event
	for ev := range Occurrences(m, now, loc) {
		if ev.Start.After(to) {
			break
		}

		if ev.Start.Before(from) {
			continue
		}

		events = append(events, ev)
	}

	return events
}

func eventSlug(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "medication"
	}

	return strings.Join(strings.Fields(name), "-")
}
