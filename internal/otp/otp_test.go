package otp

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTTLs = TTLs{Code: 10 * time.Minute, Reset: 30 * time.Minute}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, `^[0-9]{6}$`, code)
	}
}

// exerciseStore checks single use, replacement, expiry and token binding.
func exerciseStore(t *testing.T, s Store, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()

	code, err := s.IssueCode(ctx, "User@Example.com")
	require.NoError(t, err)
	assert.ErrorIs(t, s.VerifyCode(ctx, "user@example.com", wrong(code)), ErrInvalidCode)
	require.NoError(t, s.VerifyCode(ctx, "user@example.com", code))
	assert.ErrorIs(t, s.VerifyCode(ctx, "user@example.com", code), ErrInvalidCode, "codes are single-use")

	first, err := s.IssueCode(ctx, "user@example.com")
	require.NoError(t, err)
	second, err := s.IssueCode(ctx, "user@example.com")
	require.NoError(t, err)
	if first != second {
		assert.ErrorIs(t, s.VerifyCode(ctx, "user@example.com", first), ErrInvalidCode, "resend replaces the old code")
	}

	expiring, err := s.IssueCode(ctx, "late@example.com")
	require.NoError(t, err)
	advance(testTTLs.Code + time.Second)
	assert.ErrorIs(t, s.VerifyCode(ctx, "late@example.com", expiring), ErrInvalidCode)

	token, err := s.IssueResetToken(ctx, "Reset@Example.com")
	require.NoError(t, err)
	email, err := s.ConsumeResetToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "reset@example.com", email)
	_, err = s.ConsumeResetToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	stale, err := s.IssueResetToken(ctx, "reset@example.com")
	require.NoError(t, err)
	advance(testTTLs.Reset + time.Second)
	_, err = s.ConsumeResetToken(ctx, stale)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func wrong(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	exerciseStore(t, NewRedisStore(client, testTTLs), mr.FastForward)

	_, err := NewRedisStore(client, testTTLs).ConsumeResetToken(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryStore(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(testTTLs).WithClock(func() time.Time { return now })
	exerciseStore(t, s, func(d time.Duration) { now = now.Add(d) })
}

func TestMemoryStore_SweepsAbandonedEntries(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(testTTLs).WithClock(func() time.Time { return now })
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := s.IssueCode(ctx, email)
		require.NoError(t, err)
		_, err = s.IssueResetToken(ctx, email)
		require.NoError(t, err)
	}
	codes, resets := s.Pending()
	assert.Equal(t, 3, codes)
	assert.Equal(t, 3, resets)

	// Codes have expired, reset tokens have not.
	now = now.Add(testTTLs.Code)
	_, err := s.IssueCode(ctx, "d@example.com")
	require.NoError(t, err)
	codes, resets = s.Pending()
	assert.Equal(t, 1, codes)
	assert.Equal(t, 3, resets)

	now = now.Add(testTTLs.Reset)
	_, err = s.IssueResetToken(ctx, "d@example.com")
	require.NoError(t, err)
	codes, resets = s.Pending()
	assert.Zero(t, codes)
	assert.Equal(t, 1, resets)
}
