package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/stwalsh4118/covenant/internal/config"
)

// sendClient is the part of *sendgrid.Client the mailer uses.
type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer delivers messages through the SendGrid v3 API.
type SendGridMailer struct {
	client sendClient
	from   *mail.Email
}

// NewSendGridMailer creates a mailer using the configured API key and sender.
func NewSendGridMailer(cfg config.EmailConfig) *SendGridMailer {
	return newSendGridMailer(sendgrid.NewSendClient(cfg.APIKey), cfg)
}

func newSendGridMailer(client sendClient, cfg config.EmailConfig) *SendGridMailer {
	return &SendGridMailer{
		client: client,
		from:   mail.NewEmail(cfg.FromName, cfg.From),
	}
}

// Send delivers msg. Any non-2xx response is an error.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	to := mail.NewEmail(msg.ToName, msg.To)
	email := mail.NewSingleEmail(m.from, msg.Subject, to, msg.Text, msg.HTML)
	if msg.Category != "" {
		email.AddCategories(msg.Category)
	}

	resp, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected email to %s: status %d: %s", msg.To, resp.StatusCode, resp.Body)
	}
	return nil
}
