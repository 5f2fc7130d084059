package otp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sweepEvery bounds how often issuing scans for expired entries.
const sweepEvery = time.Minute

type entry struct {
	value   string
	expires time.Time
}

// MemoryStore is a Store for single-instance deployments and tests.
type MemoryStore struct {
	mu     sync.Mutex
	codes  map[string]entry
	resets map[string]entry
	ttl    TTLs
	now    func() time.Time

	lastSweep time.Time
}

func NewMemoryStore(ttl TTLs) *MemoryStore {
	return &MemoryStore{
		codes:  make(map[string]entry),
		resets: make(map[string]entry),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) IssueCode(_ context.Context, email string) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)
	s.codes[normalizeEmail(email)] = entry{value: code, expires: now.Add(s.ttl.Code)}
	return code, nil
}

func (s *MemoryStore) VerifyCode(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeEmail(email)
	e, ok := s.codes[key]
	if !ok || !s.now().Before(e.expires) {
		delete(s.codes, key)
		return ErrInvalidCode
	}
	if !codesEqual(e.value, code) {
		return ErrInvalidCode
	}
	delete(s.codes, key)
	return nil
}

func (s *MemoryStore) IssueResetToken(_ context.Context, email string) (string, error) {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)
	s.resets[token] = entry{value: normalizeEmail(email), expires: now.Add(s.ttl.Reset)}
	return token, nil
}

func (s *MemoryStore) ConsumeResetToken(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.resets[token]
	delete(s.resets, token)
	if !ok || !s.now().Before(e.expires) {
		return "", ErrInvalidToken
	}
	return e.value, nil
}

// Pending returns the number of live codes and reset tokens held.
func (s *MemoryStore) Pending() (codes, resets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes), len(s.resets)
}

// sweep drops expired entries. Callers hold s.mu.
func (s *MemoryStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < sweepEvery {
		return
	}
	s.lastSweep = now
	for k, e := range s.codes {
		if !now.Before(e.expires) {
			delete(s.codes, k)
		}
	}
	for k, e := range s.resets {
		if !now.Before(e.expires) {
			delete(s.resets, k)
		}
	}
}
