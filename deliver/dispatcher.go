package deliver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/AlisiaBaielli/TirAImisu/db"
	"github.com/AlisiaBaielli/TirAImisu/notify"
)

// SentLog remembers which notifications reached a user
type SentLog interface {
	WasSent(userID, notificationID string) (bool, error)
	MarkSent(userID, notificationID string, at time.Time) error
}

// Report of one dispatch
type Report struct {
	Sent    int
	Skipped int
	Failed  int
}

// Dispatcher sends each notification once across all channels
type Dispatcher struct {
	senders []Sender
	sent    SentLog
	log     *zap.SugaredLogger
}

// NewDispatcher creates a dispatcher over the given channels
func NewDispatcher(sent SentLog, log *zap.SugaredLogger, senders ...Sender) *Dispatcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Dispatcher{
		senders: senders,
		sent:    sent,
		log:     log,
	}
}

// Dispatch delivers the notifications a user has not received yet. A
// notification counts as sent once any channel accepted it.
func (d *Dispatcher) Dispatch(ctx context.Context, user *db.User, notifications []notify.Notification, now time.Time) Report {
	var report Report
	userID := user.ID.String()
	log := d.log.With("user", user.Name)

	for _, n := range notifications {
		if ctx.Err() != nil {
			break
		}

		sent, err := d.sent.WasSent(userID, n.ID)
		if err != nil {
			log.Warnw("sent log unreadable", "notification", n.ID, "error", err)
		}

		if sent {
			report.Skipped++
			continue
		}

		delivered, failed := d.send(ctx, user, n, log)
		switch {
		case delivered:
			report.Sent++
			if err := d.sent.MarkSent(userID, n.ID, now); err != nil {
				log.Warnw("failed to record sent notification", "notification", n.ID, "error", err)
			}

		case failed:
			report.Failed++

		default:
			report.Skipped++
		}
	}

	return report
}

func (d *Dispatcher) send(ctx context.Context, user *db.User, n notify.Notification, log *zap.SugaredLogger) (delivered, failed bool) {
	for _, s := range d.senders {
		if !s.Accepts(n) {
			continue
		}

		err := s.Send(ctx, user, n)
		switch {
		case err == nil:
			delivered = true

		case errors.Is(err, ErrNoRecipients):
			log.Debugw("no recipients", "channel", s.Name(), "notification", n.ID)

		default:
			failed = true
			log.Errorw("delivery failed", "channel", s.Name(), "notification", n.ID, "error", err)
		}
	}

	return delivered, failed
}
