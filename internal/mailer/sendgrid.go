package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridMailer sends email through the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGridMailer creates a mailer. host overrides the API host and may be empty.
func NewSendGridMailer(apiKey, fromAddress, fromName, host string) *SendGridMailer {
	req := sendgrid.GetRequest(apiKey, "/v3/mail/send", host)
	req.Method = "POST"
	return &SendGridMailer{
		client: &sendgrid.Client{Request: req},
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

func (m *SendGridMailer) SendVerificationCode(ctx context.Context, to, code string) error {
	return m.send(ctx, to, VerificationMessage(code))
}

func (m *SendGridMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	return m.send(ctx, to, PasswordResetMessage(link))
}

func (m *SendGridMailer) send(ctx context.Context, to string, msg Message) error {
	email := mail.NewSingleEmail(m.from, msg.Subject, mail.NewEmail("", to), msg.Text, msg.HTML)
	resp, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: unexpected status %d", resp.StatusCode)
	}
	return nil
}
