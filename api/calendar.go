package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/AlisiaBaielli/TirAImisu/calendar"
)

// CalendarSource serves cached calendar events and refreshes them
type CalendarSource interface {
	Events(ctx context.Context, calendarID string) ([]calendar.Event, error)
	Refresh(ctx context.Context, calendarID string) ([]calendar.Event, error)
}

// Calendar handler
type Calendar struct {
	Source CalendarSource
	Log    *zap.SugaredLogger
}

func (h *Calendar) log() *zap.SugaredLogger {
	if h.Log == nil {
		return zap.NewNop().Sugar()
	}

	return h.Log
}

// EventsHandler returns the cached events of a calendar. An unreachable
// calendar yields an empty list.
func (h *Calendar) EventsHandler(w http.ResponseWriter, r *http.Request) {
	log := h.log()
	calendarID := mux.Vars(r)["calendar_id"]

	events, err := h.Source.Events(r.Context(), calendarID)
	if err != nil {
		log.Warnw("calendar unavailable", "calendar_id", calendarID, "error", err)
		events = []calendar.Event{}
	}

	writeJSON(w, log, http.StatusOK, map[string]interface{}{"events": events})
}

// RefreshHandler fetches the calendar live and replaces the cached events
func (h *Calendar) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	log := h.log()
	calendarID := mux.Vars(r)["calendar_id"]

	events, err := h.Source.Refresh(r.Context(), calendarID)
	if errors.Is(err, calendar.ErrNoLiveSource) {
		errorStatus(w, log, "calendar is not configured", http.StatusServiceUnavailable, err)
		return
	}

	if err != nil {
		errorStatus(w, log, "failed to refresh calendar", http.StatusBadGateway, err)
		return
	}

	writeJSON(w, log, http.StatusOK, map[string]interface{}{"events": events})
}
