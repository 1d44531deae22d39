package deliver

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/AlisiaBaielli/TirAImisu/db"
	"github.com/AlisiaBaielli/TirAImisu/notify"
)

const fromName = "PillPal"

type mailAPI interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// Email delivers low-stock warnings through SendGrid
type Email struct {
	client mailAPI
	from   string
	log    *zap.SugaredLogger
}

// NewEmail creates an email sender authenticated with a SendGrid API key
func NewEmail(apiKey, from string, log *zap.SugaredLogger) *Email {
	return newEmail(sendgrid.NewSendClient(apiKey), from, log)
}

func newEmail(client mailAPI, from string, log *zap.SugaredLogger) *Email {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Email{client: client, from: from, log: log}
}

// Name of the channel
func (e *Email) Name() string {
	return "email"
}

// Accepts low-stock warnings only
func (e *Email) Accepts(n notify.Notification) bool {
	return n.Category == notify.CategoryLowStock
}

// Send the notification to the user's email address
func (e *Email) Send(_ context.Context, user *db.User, n notify.Notification) error {
	if user.Email == "" {
		return fmt.Errorf("email for user %s: %w", user.Name, ErrNoRecipients)
	}

	from := mail.NewEmail(fromName, e.from)
	to := mail.NewEmail(user.Name, user.Email)
	htmlContent := fmt.Sprintf("<p>%s</p>", html.EscapeString(n.Message))
	message := mail.NewSingleEmail(from, n.Title, to, n.Message, htmlContent)

	response, err := e.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to email %s: %w", n.ID, err)
	}

	if response.StatusCode >= 400 {
		e.log.Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", user.Email)
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}

	e.log.Infow("email sent", "to", user.Email, "notification", n.ID)
	return nil
}
