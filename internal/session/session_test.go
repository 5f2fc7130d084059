package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-1234"

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour, 30*24*time.Hour)
	id := uuid.New()

	token, s, err := issuer.Issue(id, "user@example.com", false)
	require.NoError(t, err)
	assert.NotEmpty(t, s.TokenID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt, 2*time.Second)

	parsed, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, id, parsed.AccountID)
	assert.Equal(t, "user@example.com", parsed.Email)
	assert.Equal(t, s.TokenID, parsed.TokenID)
}

func TestIssue_RememberUsesLongTTL(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour, 30*24*time.Hour)
	_, s, err := issuer.Issue(uuid.New(), "user@example.com", true)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), s.ExpiresAt, 2*time.Second)
}

func TestParse_Rejects(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour, time.Hour)
	token, _, err := issuer.Issue(uuid.New(), "user@example.com", false)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewIssuer("another-secret-another-secret-12345", time.Hour, time.Hour).Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewIssuer(testSecret, time.Hour, time.Hour).WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
		_, err := later.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "someone-else",
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			ID:        "x",
		})
		signed, err := foreign.SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = issuer.Parse(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: uuid.NewString()})
		signed, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.Parse(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestIssue_RequiresSecret(t *testing.T) {
	_, _, err := NewIssuer("", time.Hour, time.Hour).Issue(uuid.New(), "a@b.co", false)
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	s := &Session{AccountID: uuid.New()}
	got, ok := FromContext(NewContext(context.Background(), s))
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestRevocations(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	for name, r := range map[string]Revocations{
		"redis":  NewRedisRevocations(client),
		"memory": NewMemoryRevocations(),
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, r.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
			revoked, err := r.IsRevoked(ctx, "jti-1")
			require.NoError(t, err)
			assert.True(t, revoked)

			revoked, err = r.IsRevoked(ctx, "jti-2")
			require.NoError(t, err)
			assert.False(t, revoked)

			// Already-expired tokens need no entry.
			require.NoError(t, r.Revoke(ctx, "jti-old", time.Now().Add(-time.Minute)))
			revoked, err = r.IsRevoked(ctx, "jti-old")
			require.NoError(t, err)
			assert.False(t, revoked)
		})
	}

	assert.True(t, mr.Exists("blacklist:jti-1"))
}
