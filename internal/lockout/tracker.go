// Package lockout throttles repeated failed attempts.
//
// A Tracker is the per-form state machine used by clients. A Guard applies
// the same policy server-side, keyed by an identifier such as an email.
package lockout

import (
	"fmt"
	"math"
	"time"
)

const (
	// MaxFailures is the number of failures that triggers a lockout.
	MaxFailures = 5
	// Window is how long a lockout lasts.
	Window = 5 * time.Minute
)

// LockedError is returned while a lockout is active.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return CountdownMessage(e.Remaining)
}

// CountdownMessage formats the user-facing lockout message.
func CountdownMessage(remaining time.Duration) string {
	secs := int(math.Ceil(remaining.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("Too many failed attempts. Please try again in %d:%02d.", secs/60, secs%60)
}

// Tracker counts failures for one form session. It is not safe for concurrent use.
type Tracker struct {
	failures    int
	lockedUntil time.Time
}

// Allow reports whether an attempt may proceed at now. While locked it
// returns the time left. An expired lockout resets the counter.
func (t *Tracker) Allow(now time.Time) (time.Duration, bool) {
	if t.lockedUntil.IsZero() {
		return 0, true
	}
	if now.Before(t.lockedUntil) {
		return t.lockedUntil.Sub(now), false
	}
	t.failures = 0
	t.lockedUntil = time.Time{}
	return 0, true
}

// RecordFailure counts a failed attempt and reports whether it started a lockout.
func (t *Tracker) RecordFailure(now time.Time) bool {
	if _, ok := t.Allow(now); !ok {
		return false
	}
	t.failures++
	if t.failures >= MaxFailures {
		t.lockedUntil = now.Add(Window)
		return true
	}
	return false
}

// RecordSuccess clears the failure count.
func (t *Tracker) RecordSuccess() {
	t.failures = 0
	t.lockedUntil = time.Time{}
}

// Failures returns the current failure count.
func (t *Tracker) Failures() int {
	return t.failures
}

// LockedUntil returns the lockout expiry, zero when not locked.
func (t *Tracker) LockedUntil() time.Time {
	return t.lockedUntil
}
