package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/AlisiaBaielli/TirAImisu/db"
	"github.com/AlisiaBaielli/TirAImisu/notify"
)

// NotificationEngine computes a user's notifications
type NotificationEngine interface {
	Compute(ctx context.Context, user *db.User, now time.Time) (*notify.Payload, error)
}

// Notifications handler
type Notifications struct {
	DB     Users
	Engine NotificationEngine
	Now    func() time.Time
	Log    *zap.SugaredLogger
}

// ListHandler computes the user's notifications at the current time
func (h *Notifications) ListHandler(w http.ResponseWriter, r *http.Request) {
	log := h.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	user, ok := lookupUser(w, r, h.DB, log)
	if !ok {
		return
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	payload, err := h.Engine.Compute(r.Context(), user, now())
	if err != nil {
		errorStatus(w, log, "failed to compute notifications", http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, log, http.StatusOK, payload)
}
