package calendar

import (
	"time"

	"github.com/AlisiaBaielli/TirAImisu/localtime"
)

// When wraps a timestamp the way the calendar API nests it
type When struct {
	DateTime string `json:"date_time"`
}

// Event in an external calendar
type Event struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Start       When   `json:"start"`
	End         When   `json:"end"`
}

// StartTime parses the event start in loc
func (e *Event) StartTime(loc *time.Location) (time.Time, error) {
	return localtime.Parse(e.Start.DateTime, loc)
}

// NewEvent builds an event with aware start and end timestamps
func NewEvent(title, description string, start, end time.Time) Event {
	return Event{
		Title:       title,
		Description: description,
		Start:       When{DateTime: start.Format(time.RFC3339)},
		End:         When{DateTime: end.Format(time.RFC3339)},
	}
}
