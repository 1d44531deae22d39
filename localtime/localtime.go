// Package localtime normalizes wall-clock strings coming from stored medication
// schedules and external calendars into absolute instants.
//
// Timestamps without an offset are naive: they are read as wall-clock time in
// the caller's location. Timestamps with an offset are converted to that
// location so every instant handed to the engine compares consistently.
package localtime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformed is returned for strings that match none of the accepted layouts
var ErrMalformed = errors.New("malformed time value")

var awareLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Location resolves a zone name. An empty name or "Local" yields time.Local.
func Location(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", name, err)
	}

	return loc, nil
}

// Parse reads an ISO-8601 style timestamp. Naive values are taken as wall-clock
// time in loc; aware values are converted into loc.
func Parse(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp: %w", ErrMalformed)
	}

	if loc == nil {
		loc = time.Local
	}

	for _, layout := range awareLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.In(loc), nil
		}
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp %q: %w", value, ErrMalformed)
}

// Clock is a time of day
type Clock struct {
	Hour   int
	Minute int
}

// String formats the clock as HH:MM
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On places the clock on the calendar date of day, in day's location.
func (c Clock) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

// ParseClock reads "HH:MM" (or "H:MM", or a bare hour).
func ParseClock(value string) (Clock, error) {
	value = strings.TrimSpace(value)
	hourPart, minutePart, hasMinutes := strings.Cut(value, ":")

	hour, err := strconv.Atoi(hourPart)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q: %w", value, ErrMalformed)
	}

	minute := 0
	if hasMinutes {
		minute, err = strconv.Atoi(minutePart)
		if err != nil || minute < 0 || minute > 59 {
			return Clock{}, fmt.Errorf("invalid minute in %q: %w", value, ErrMalformed)
		}
	}

	return Clock{Hour: hour, Minute: minute}, nil
}

// StartOfDay truncates t to local midnight of its own location
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDate reports whether a and b fall on the same calendar date in loc.
func SameDate(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}

	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()

	return ay == by && am == bm && ad == bd
}

// Within reports whether start <= t <= end.
func Within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
