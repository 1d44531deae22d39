// Package deliver pushes computed notifications to users over Pushover and
// email, remembering what was already sent.
package deliver

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/gregdel/pushover"
	"go.uber.org/zap"

	"github.com/AlisiaBaielli/TirAImisu/db"
	"github.com/AlisiaBaielli/TirAImisu/notify"
)

// ErrNoRecipients occurs when a user has nowhere to receive a notification
var ErrNoRecipients = errors.New("user has no recipients for this channel")

// Sender is a delivery channel
type Sender interface {
	Name() string
	Accepts(n notify.Notification) bool
	Send(ctx context.Context, user *db.User, n notify.Notification) error
}

type pushoverAPI interface {
	SendMessage(message *pushover.Message, recipient *pushover.Recipient) (*pushover.Response, error)
}

// Pushover delivers every notification category to a user's devices
type Pushover struct {
	app pushoverAPI
	log *zap.SugaredLogger
}

// NewPushover creates a Pushover sender for the application token
func NewPushover(apiToken string, log *zap.SugaredLogger) *Pushover {
	return newPushover(pushover.New(apiToken), log)
}

func newPushover(app pushoverAPI, log *zap.SugaredLogger) *Pushover {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Pushover{app: app, log: log}
}

// Name of the channel
func (p *Pushover) Name() string {
	return "pushover"
}

// Accepts all categories
func (p *Pushover) Accepts(notify.Notification) bool {
	return true
}

// Send the notification to the user's devices. A notification naming devices
// goes only to those of them the user has registered.
func (p *Pushover) Send(_ context.Context, user *db.User, n notify.Notification) error {
	devices := p.devices(user, n)
	if len(devices) == 0 {
		return fmt.Errorf("pushover for user %s: %w", user.Name, ErrNoRecipients)
	}

	var errs []error
	for _, device := range devices {
		message := newPushoverMessage(n)
		recipient := pushover.NewRecipient(user.PushoverDeviceTokens[device])

		if _, err := p.app.SendMessage(message, recipient); err != nil {
			errs = append(errs, fmt.Errorf("failed to push %s to device %s: %w", n.ID, device, err))
			continue
		}

		p.log.Debugw("pushed notification", "user", user.Name, "device", device, "notification", n.ID)
	}

	return errors.Join(errs...)
}

func (p *Pushover) devices(user *db.User, n notify.Notification) []string {
	var devices []string
	if len(n.Devices) == 0 {
		for device := range user.PushoverDeviceTokens {
			devices = append(devices, device)
		}
	} else {
		for _, device := range n.Devices {
			if _, ok := user.PushoverDeviceTokens[device]; !ok {
				p.log.Warnw("notification names an unregistered device", "user", user.Name, "device", device, "notification", n.ID)
				continue
			}

			devices = append(devices, device)
		}
	}

	sort.Strings(devices)
	return slices.Compact(devices)
}

func newPushoverMessage(n notify.Notification) *pushover.Message {
	message := pushover.NewMessageWithTitle(n.Message, n.Title)
	message.Timestamp = n.DueAt.Unix()

	if n.Category == notify.CategoryLowStock {
		message.Priority = pushover.PriorityHigh
	}

	return message
}
