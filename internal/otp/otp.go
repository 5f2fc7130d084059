// Package otp issues single-use email verification codes and password reset tokens.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

var (
	// ErrInvalidCode covers wrong, expired and already-used codes alike.
	ErrInvalidCode = errors.New("otp: invalid or expired code")
	// ErrInvalidToken covers unknown, expired and already-used reset tokens.
	ErrInvalidToken = errors.New("otp: invalid or expired reset token")
)

// Store keeps outstanding codes and reset tokens.
type Store interface {
	// IssueCode replaces any outstanding code for email and returns the new one.
	IssueCode(ctx context.Context, email string) (string, error)
	// VerifyCode consumes the code when it matches.
	VerifyCode(ctx context.Context, email, code string) error
	// IssueResetToken returns a new single-use reset token bound to email.
	IssueResetToken(ctx context.Context, email string) (string, error)
	// ConsumeResetToken returns the bound email and invalidates the token.
	ConsumeResetToken(ctx context.Context, token string) (string, error)
}

// TTLs configures store lifetimes.
type TTLs struct {
	Code  time.Duration
	Reset time.Duration
}

// GenerateCode returns a uniformly random numeric code.
func GenerateCode() (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

func codesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
