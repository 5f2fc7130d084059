package lockout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard applies lockout server-side.
type Guard interface {
	// Check returns a *LockedError while key is locked.
	Check(ctx context.Context, key string) error
	// Fail records a failure and reports whether it started a lockout.
	Fail(ctx context.Context, key string) (bool, error)
	// Reset clears the state for key.
	Reset(ctx context.Context, key string) error
}

// NormalizeKey lowercases and trims an identifier so variants share a counter.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// RedisGuard keeps counters in Redis so every server instance shares them.
type RedisGuard struct {
	client *redis.Client
	prefix string
}

// NewRedisGuard creates a guard whose keys start with prefix, e.g. "lockout:login".
func NewRedisGuard(client *redis.Client, prefix string) *RedisGuard {
	return &RedisGuard{client: client, prefix: prefix}
}

func (g *RedisGuard) failKey(key string) string {
	return fmt.Sprintf("%s:fail:%s", g.prefix, NormalizeKey(key))
}

func (g *RedisGuard) lockKey(key string) string {
	return fmt.Sprintf("%s:until:%s", g.prefix, NormalizeKey(key))
}

func (g *RedisGuard) Check(ctx context.Context, key string) error {
	ttl, err := g.client.PTTL(ctx, g.lockKey(key)).Result()
	if err != nil {
		return fmt.Errorf("lockout check: %w", err)
	}
	// PTTL returns negative values for missing keys.
	if ttl > 0 {
		return &LockedError{Remaining: ttl}
	}
	return nil
}

func (g *RedisGuard) Fail(ctx context.Context, key string) (bool, error) {
	fk := g.failKey(key)

	count, err := g.client.Incr(ctx, fk).Result()
	if err != nil {
		return false, fmt.Errorf("lockout fail: %w", err)
	}
	if count == 1 {
		// The counter forgets failures older than one window.
		if err := g.client.Expire(ctx, fk, Window).Err(); err != nil {
			return false, fmt.Errorf("lockout fail expiry: %w", err)
		}
	}
	if count < MaxFailures {
		return false, nil
	}

	pipe := g.client.TxPipeline()
	pipe.Set(ctx, g.lockKey(key), time.Now().Add(Window).Unix(), Window)
	pipe.Del(ctx, fk)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("lockout lock: %w", err)
	}
	return true, nil
}

func (g *RedisGuard) Reset(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.failKey(key), g.lockKey(key)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("lockout reset: %w", err)
	}
	return nil
}

// MemoryGuard keeps counters in process memory with the same rules as
// RedisGuard: failures older than one window are forgotten. Idle keys are
// never stored, and stale entries are swept at most once per window.
type MemoryGuard struct {
	mu        sync.Mutex
	entries   map[string]*memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

type memoryEntry struct {
	failures    int
	resetAt     time.Time // failures are dropped after this
	lockedUntil time.Time
}

// stale reports whether the entry carries no state at now.
func (e *memoryEntry) stale(now time.Time) bool {
	return !now.Before(e.lockedUntil) && !now.Before(e.resetAt)
}

// NewMemoryGuard creates a guard for single-instance deployments and tests.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{entries: make(map[string]*memoryEntry), now: time.Now}
}

// WithClock overrides the time source.
func (g *MemoryGuard) WithClock(now func() time.Time) *MemoryGuard {
	g.now = now
	return g
}

// Len returns the number of keys currently held.
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func (g *MemoryGuard) Check(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := NormalizeKey(key)
	e, ok := g.entries[k]
	if !ok {
		return nil
	}
	now := g.now()
	if now.Before(e.lockedUntil) {
		return &LockedError{Remaining: e.lockedUntil.Sub(now)}
	}
	if e.stale(now) {
		delete(g.entries, k)
	}
	return nil
}

func (g *MemoryGuard) Fail(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.sweep(now)

	k := NormalizeKey(key)
	e, ok := g.entries[k]
	if !ok || e.stale(now) {
		e = &memoryEntry{resetAt: now.Add(Window)}
		g.entries[k] = e
	}
	if now.Before(e.lockedUntil) {
		return false, nil
	}
	e.failures++
	if e.failures < MaxFailures {
		return false, nil
	}
	e.failures = 0
	e.resetAt = time.Time{}
	e.lockedUntil = now.Add(Window)
	return true, nil
}

func (g *MemoryGuard) Reset(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, NormalizeKey(key))
	return nil
}

// sweep drops stale entries. Callers hold g.mu.
func (g *MemoryGuard) sweep(now time.Time) {
	if now.Sub(g.lastSweep) < Window {
		return
	}
	g.lastSweep = now
	for k, e := range g.entries {
		if e.stale(now) {
			delete(g.entries, k)
		}
	}
}
