// Package session issues and verifies the signed tokens that represent a signed-in account.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Registered claim values for tokens minted here.
const (
	TokenIssuer   = "kinship-api"
	TokenAudience = "kinship-client"
)

// ErrInvalidToken is returned for malformed, expired or foreign tokens.
var ErrInvalidToken = errors.New("session: invalid or expired token")

// Session is the verified content of a token.
type Session struct {
	AccountID uuid.UUID `json:"account_id"`
	Email     string    `json:"email"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issuer signs and parses HS256 session tokens.
type Issuer struct {
	secret      []byte
	ttl         time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

// NewIssuer creates an Issuer. rememberTTL applies when the user asks to stay signed in.
func NewIssuer(secret string, ttl, rememberTTL time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, rememberTTL: rememberTTL, now: time.Now}
}

// WithClock overrides the time source.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue signs a token for the account.
func (i *Issuer) Issue(accountID uuid.UUID, email string, remember bool) (string, *Session, error) {
	if len(i.secret) == 0 {
		return "", nil, errors.New("session: signing secret not configured")
	}

	ttl := i.ttl
	if remember {
		ttl = i.rememberTTL
	}
	now := i.now()
	s := &Session{
		AccountID: accountID,
		Email:     email,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(ttl).Truncate(time.Second),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        s.TokenID,
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("session: sign: %w", err)
	}
	return signed, s, nil
}

// Parse verifies signature, issuer, audience and expiry.
func (i *Issuer) Parse(tokenString string) (*Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(c.Subject)
	if err != nil || c.ID == "" {
		return nil, ErrInvalidToken
	}
	return &Session{
		AccountID: id,
		Email:     c.Email,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by NewContext.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
