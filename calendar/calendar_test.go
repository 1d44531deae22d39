package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestClientListEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/calendars/cal_1/events", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		w.Write([]byte(`{"data":[{"id":"e1","title":"Tennis","start":{"date_time":"2025-11-10T10:00:00"},"end":{"date_time":"2025-11-10T11:00:00"}}]}`))
	}))
	defer srv.Close()

	events, err := NewClient(srv.URL+"/", "secret", time.Second, nil).ListEvents(context.Background(), "cal_1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Tennis", events[0].Title)

	start, err := events[0].StartTime(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 10, 10, 0, 0, 0, time.UTC), start)
}

func TestClientListEventsEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null}`))
	}))
	defer srv.Close()

	events, err := NewClient(srv.URL, "", time.Second, nil).ListEvents(context.Background(), "cal_1")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second, nil).ListEvents(context.Background(), "cal_1")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestClientCreateEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		assert.Equal(t, "Aspirin 100mg", ev.Title)

		ev.ID = "created_1"
		json.NewEncoder(w).Encode(map[string]interface{}{"data": ev})
	}))
	defer srv.Close()

	start := time.Date(2025, 11, 10, 8, 0, 0, 0, time.UTC)
	created, err := NewClient(srv.URL, "", time.Second, nil).CreateEvent(context.Background(), "cal_1", NewEvent("Aspirin 100mg", "", start, start.Add(10*time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, "created_1", created.ID)
	assert.Equal(t, "2025-11-10T08:00:00Z", created.Start.DateTime)
}

type memoryCache struct {
	mu     sync.Mutex
	events map[string][]Event
}

func (m *memoryCache) CalendarEvents(calendarID string) ([]Event, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	events, ok := m.events[calendarID]
	return events, ok, nil
}

func (m *memoryCache) SetCalendarEvents(calendarID string, events []Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[calendarID] = events
	return nil
}

type mockLister struct {
	mock.Mock
}

func (m *mockLister) ListEvents(ctx context.Context, calendarID string) ([]Event, error) {
	args := m.Called(ctx, calendarID)
	events, _ := args.Get(0).([]Event)
	return events, args.Error(1)
}

func TestSourceReadsThrough(t *testing.T) {
	cache := &memoryCache{events: map[string][]Event{}}
	live := &mockLister{}
	live.On("ListEvents", mock.Anything, "cal_1").Return([]Event{{ID: "e1", Title: "Tennis"}}, nil).Once()

	s := NewSource(cache, live, time.Second, nil)

	first, err := s.Events(context.Background(), "cal_1")
	require.NoError(t, err)
	second, err := s.Events(context.Background(), "cal_1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	live.AssertNumberOfCalls(t, "ListEvents", 1)
}

func TestSourceServesCachedEmptyCalendar(t *testing.T) {
	cache := &memoryCache{events: map[string][]Event{}}
	live := &mockLister{}
	live.On("ListEvents", mock.Anything, "cal_1").Return([]Event{}, nil).Once()

	s := NewSource(cache, live, time.Second, nil)

	for range 3 {
		events, err := s.Events(context.Background(), "cal_1")
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.NotNil(t, events)
	}

	live.AssertNumberOfCalls(t, "ListEvents", 1)
}

func TestSourceRefreshBoundsLiveCall(t *testing.T) {
	cache := &memoryCache{events: map[string][]Event{"cal_1": {{ID: "old"}}}}
	live := &mockLister{}
	live.On("ListEvents", mock.Anything, "cal_1").Return([]Event{{ID: "new"}}, nil).Run(func(args mock.Arguments) {
		_, ok := args.Get(0).(context.Context).Deadline()
		assert.True(t, ok)
	})

	events, err := NewSource(cache, live, time.Second, nil).Refresh(context.Background(), "cal_1")
	require.NoError(t, err)
	assert.Equal(t, "new", events[0].ID)
	assert.Equal(t, "new", cache.events["cal_1"][0].ID)
}

func TestSourceRefreshFailureKeepsCache(t *testing.T) {
	cache := &memoryCache{events: map[string][]Event{"cal_1": {{ID: "old"}}}}
	live := &mockLister{}
	live.On("ListEvents", mock.Anything, "cal_1").Return(nil, errors.New("timeout"))

	_, err := NewSource(cache, live, time.Second, nil).Refresh(context.Background(), "cal_1")
	assert.Error(t, err)
	assert.Equal(t, "old", cache.events["cal_1"][0].ID)
}

func TestSourceWithoutLiveCalendar(t *testing.T) {
	s := NewSource(&memoryCache{events: map[string][]Event{}}, nil, time.Second, nil)

	events, err := s.Events(context.Background(), "cal_1")
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = s.Refresh(context.Background(), "cal_1")
	assert.ErrorIs(t, err, ErrNoLiveSource)
}
