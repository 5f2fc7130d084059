// Package middleware provides the HTTP middleware shared by all routes.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"kinship/internal/models"
	"kinship/internal/session"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by Authenticator.
const (
	LocalUserID  = "userID"
	LocalSession = "session"
)

// SessionCookie carries the token for server-rendered pages and browser websockets.
const SessionCookie = "kinship_session"

// Authenticator resolves the session behind a request.
type Authenticator struct {
	issuer      *session.Issuer
	revocations session.Revocations
}

// NewAuthenticator creates an Authenticator. revocations may be nil.
func NewAuthenticator(issuer *session.Issuer, revocations session.Revocations) *Authenticator {
	return &Authenticator{issuer: issuer, revocations: revocations}
}

var (
	errNoToken = errors.New("no token")
	errRevoked = errors.New("token has been revoked")
)

// TokenFromRequest returns the bearer token, falling back to the session cookie.
func TokenFromRequest(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Cookies(SessionCookie)
}

// Resolve verifies the token on c without writing a response.
func (a *Authenticator) Resolve(c *fiber.Ctx) (*session.Session, error) {
	token := TokenFromRequest(c)
	if token == "" {
		return nil, errNoToken
	}
	s, err := a.issuer.Parse(token)
	if err != nil {
		return nil, err
	}
	if a.revocations != nil {
		revoked, err := a.revocations.IsRevoked(c.UserContext(), s.TokenID)
		if err != nil {
			// A revocation store outage must not sign everyone out.
			Logger.WarnContext(c.UserContext(), "revocation check failed", slog.String("error", err.Error()))
		} else if revoked {
			return nil, errRevoked
		}
	}
	return s, nil
}

func attach(c *fiber.Ctx, s *session.Session) {
	c.Locals(LocalUserID, s.AccountID)
	c.Locals(LocalSession, s)
	ctx := session.NewContext(c.UserContext(), s)
	ctx = context.WithValue(ctx, UserIDKey, s.AccountID)
	c.SetUserContext(ctx)
}

// Required rejects requests without a valid session.
func (a *Authenticator) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := a.Resolve(c)
		if err != nil {
			msg := "Invalid or expired token"
			switch {
			case errors.Is(err, errNoToken):
				msg = "Authorization required"
			case errors.Is(err, errRevoked):
				msg = "Token has been revoked"
			}
			return models.RespondWithAppError(c, models.NewUnauthorizedError(msg))
		}
		attach(c, s)
		return c.Next()
	}
}

// Optional attaches the session when one is present and valid.
func (a *Authenticator) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s, err := a.Resolve(c); err == nil {
			attach(c, s)
		}
		return c.Next()
	}
}

// RedirectUnauthenticated sends browsers without a session to target.
func (a *Authenticator) RedirectUnauthenticated(target string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := a.Resolve(c)
		if err != nil {
			c.ClearCookie(SessionCookie)
			return c.Redirect(target, fiber.StatusSeeOther)
		}
		attach(c, s)
		return c.Next()
	}
}
