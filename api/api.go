// Package api serves medications, notifications and calendar events over HTTP
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/AlisiaBaielli/TirAImisu/db"
)

// Users looks up users by id
type Users interface {
	GetUserByID(id uuid.UUID) (*db.User, error)
}

// Handlers served by the router
type Handlers struct {
	Medications   *Medications
	Notifications *Notifications
	Calendar      *Calendar
}

// New creates a mux router with all the routes. Every request is bounded by
// timeout when it is positive.
func New(h Handlers, timeout time.Duration, log *zap.SugaredLogger) *mux.Router {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	r := mux.NewRouter()
	if timeout > 0 {
		r.Use(TimeoutMiddleware(timeout))
	}
	r.Use(loggingMiddleware(log))

	r.HandleFunc("/api/health", healthCheckHandler).Methods(http.MethodGet)

	if h.Medications != nil {
		r.HandleFunc("/api/users/{user_id}/medications", h.Medications.ListHandler).Methods(http.MethodGet)
		r.HandleFunc("/api/users/{user_id}/medications", h.Medications.AddHandler).Methods(http.MethodPost)
		r.HandleFunc("/api/users/{user_id}/medications/scan", h.Medications.ScanHandler).Methods(http.MethodPost)
	}

	if h.Notifications != nil {
		r.HandleFunc("/api/users/{user_id}/notifications", h.Notifications.ListHandler).Methods(http.MethodGet)
	}

	if h.Calendar != nil {
		r.HandleFunc("/api/calendar/{calendar_id}/events", h.Calendar.EventsHandler).Methods(http.MethodGet)
		r.HandleFunc("/api/calendar/{calendar_id}/events/refresh", h.Calendar.RefreshHandler).Methods(http.MethodPost)
	}

	return r
}

// TimeoutMiddleware answers 503 for requests that outlive timeout and cancels
// their context
func TimeoutMiddleware(timeout time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, `{"error": "request timeout"}`)
	}
}

func loggingMiddleware(log *zap.SugaredLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debugw("request", "method", r.Method, "path", r.URL.Path, "latency_ms", time.Since(start).Milliseconds())
		})
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, `{"status": "ok"}`)
}

func writeJSON(w http.ResponseWriter, log *zap.SugaredLogger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorw("failed to encode response", "error", err)
	}
}

// errorStatus logs err and writes message with the status code
func errorStatus(w http.ResponseWriter, log *zap.SugaredLogger, message string, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Errorw(message, "error", err)
	} else {
		log.Debugw(message, "error", err)
	}

	writeJSON(w, log, status, map[string]string{"error": message})
}

// lookupUser resolves the user_id path variable, writing the error response
// itself when it cannot
func lookupUser(w http.ResponseWriter, r *http.Request, users Users, log *zap.SugaredLogger) (*db.User, bool) {
	id, err := uuid.Parse(mux.Vars(r)["user_id"])
	if err != nil {
		errorStatus(w, log, "invalid user id", http.StatusBadRequest, err)
		return nil, false
	}

	user, err := users.GetUserByID(id)
	if errors.Is(err, db.ErrNotFound) {
		errorStatus(w, log, "user not found", http.StatusNotFound, err)
		return nil, false
	}

	if err != nil {
		errorStatus(w, log, "failed to get user", http.StatusInternalServerError, err)
		return nil, false
	}

	return user, true
}
