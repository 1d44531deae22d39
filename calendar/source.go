package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNoLiveSource occurs when a refresh is requested without a configured calendar API
var ErrNoLiveSource = errors.New("no live calendar source configured")

// Cache persists the last known events per calendar
type Cache interface {
	CalendarEvents(calendarID string) ([]Event, bool, error)
	SetCalendarEvents(calendarID string, events []Event) error
}

// Lister fetches events live from the calendar provider
type Lister interface {
	ListEvents(ctx context.Context, calendarID string) ([]Event, error)
}

// Source is a read-through cache in front of the calendar provider
type Source struct {
	cache   Cache
	live    Lister
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewSource creates a read-through source. live may be nil, in which case only
// cached events are served.
func NewSource(cache Cache, live Lister, timeout time.Duration, log *zap.SugaredLogger) *Source {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Source{
		cache:   cache,
		live:    live,
		timeout: timeout,
		log:     log,
	}
}

// Events returns cached events for the calendar, falling back to a live fetch
// that also populates the cache. An unreadable cache counts as empty.
func (s *Source) Events(ctx context.Context, calendarID string) ([]Event, error) {
	events, ok, err := s.cache.CalendarEvents(calendarID)
	if err != nil {
		s.log.Warnw("calendar cache unreadable, treating as empty", "calendar_id", calendarID, "error", err)
	}

	if ok {
		if events == nil {
			events = []Event{}
		}

		return events, nil
	}

	if s.live == nil {
		return []Event{}, nil
	}

	return s.Refresh(ctx, calendarID)
}

// Refresh fetches events live and replaces the cached copy
func (s *Source) Refresh(ctx context.Context, calendarID string) ([]Event, error) {
	if s.live == nil {
		return nil, ErrNoLiveSource
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	events, err := s.live.ListEvents(ctx, calendarID)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh calendar %s: %w", calendarID, err)
	}

	if err := s.cache.SetCalendarEvents(calendarID, events); err != nil {
		s.log.Warnw("failed to cache calendar events", "calendar_id", calendarID, "error", err)
	}

	return events, nil
}
