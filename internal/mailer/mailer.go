// Package mailer delivers verification and password reset emails.
package mailer

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"kinship/internal/middleware"
)

// Mailer sends transactional email.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, code string) error
	SendPasswordReset(ctx context.Context, to, link string) error
}

// Message is a rendered email.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// VerificationMessage renders the signup confirmation email.
func VerificationMessage(code string) Message {
	return Message{
		Subject: "Your Kinship verification code",
		Text:    fmt.Sprintf("Your verification code is %s. It expires soon, so enter it now.", code),
		HTML:    fmt.Sprintf("<p>Your verification code is <strong>%s</strong>.</p>", html.EscapeString(code)),
	}
}

// PasswordResetMessage renders the reset email.
func PasswordResetMessage(link string) Message {
	return Message{
		Subject: "Reset your Kinship password",
		Text:    "Follow this link to choose a new password: " + link,
		HTML:    fmt.Sprintf(`<p><a href="%s">Choose a new password</a></p>`, html.EscapeString(link)),
	}
}

// LogMailer writes emails to the log instead of sending them. Used in development.
type LogMailer struct{}

func (LogMailer) SendVerificationCode(ctx context.Context, to, code string) error {
	middleware.Logger.InfoContext(ctx, "verification email", slog.String("to", to), slog.String("code", code))
	return nil
}

func (LogMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	middleware.Logger.InfoContext(ctx, "password reset email", slog.String("to", to), slog.String("link", link))
	return nil
}
