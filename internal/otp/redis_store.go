package otp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps codes and tokens as expiring Redis keys.
type RedisStore struct {
	client *redis.Client
	ttl    TTLs
}

func NewRedisStore(client *redis.Client, ttl TTLs) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func codeKey(email string) string { return "otp:code:" + normalizeEmail(email) }
func resetKey(token string) string { return "otp:reset:" + token }

func (s *RedisStore) IssueCode(ctx context.Context, email string) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, codeKey(email), code, s.ttl.Code).Err(); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

func (s *RedisStore) VerifyCode(ctx context.Context, email, code string) error {
	key := codeKey(email)
	stored, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	if !codesEqual(stored, code) {
		return ErrInvalidCode
	}
	// Whoever deletes the key first wins; a concurrent second use fails.
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if n == 0 {
		return ErrInvalidCode
	}
	return nil
}

func (s *RedisStore) IssueResetToken(ctx context.Context, email string) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, resetKey(token), normalizeEmail(email), s.ttl.Reset).Err(); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return token, nil
}

func (s *RedisStore) ConsumeResetToken(ctx context.Context, token string) (string, error) {
	if _, err := uuid.Parse(token); err != nil {
		return "", ErrInvalidToken
	}
	email, err := s.client.GetDel(ctx, resetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("consume reset token: %w", err)
	}
	return email, nil
}
