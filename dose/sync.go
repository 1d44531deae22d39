package dose

import (
	"context"
	"fmt"
	"time"

	"github.com/AlisiaBaielli/TirAImisu/calendar"
	"github.com/AlisiaBaielli/TirAImisu/db"
)

// EventCreator writes events into an external calendar
type EventCreator interface {
	CreateEvent(ctx context.Context, calendarID string, event calendar.Event) (*calendar.Event, error)
}

// CalendarEvent converts a dose into an external calendar event
func (e Event) CalendarEvent() calendar.Event {
	ev := calendar.NewEvent(e.Title, "Medication dose", e.Start, e.End)
	ev.ID = e.ID
	return ev
}

// Sync pushes the dose events of meds starting in [from, to] into a calendar
// and returns how many were created. It stops at the first failure.
func Sync(ctx context.Context, creator EventCreator, calendarID string, meds []*db.Medication, now time.Time, loc *time.Location, from, to time.Time) (int, error) {
	created := 0
	for _, m := range meds {
		for _, ev := range Between(m, now, loc, from, to) {
			if _, err := creator.CreateEvent(ctx, calendarID, ev.CalendarEvent()); err != nil {
				return created, fmt.Errorf("failed to create calendar event for %s: %w", ev.Title, err)
			}

			created++
		}
	}

	return created, nil
}
