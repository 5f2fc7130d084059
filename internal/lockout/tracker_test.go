package lockout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_LocksAfterFiveFailures(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var tr Tracker

	for i := 1; i < MaxFailures; i++ {
		_, ok := tr.Allow(t0)
		require.True(t, ok)
		assert.False(t, tr.RecordFailure(t0), "failure %d must not lock", i)
	}
	assert.True(t, tr.RecordFailure(t0))
	assert.Equal(t, t0.Add(Window), tr.LockedUntil())

	remaining, ok := tr.Allow(t0.Add(time.Minute))
	assert.False(t, ok)
	assert.Equal(t, 4*time.Minute, remaining)

	// Failures during the lockout do not extend it.
	assert.False(t, tr.RecordFailure(t0.Add(2*time.Minute)))
	assert.Equal(t, t0.Add(Window), tr.LockedUntil())
}

func TestTracker_ResetsAfterExpiry(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var tr Tracker
	for i := 0; i < MaxFailures; i++ {
		tr.RecordFailure(t0)
	}

	_, ok := tr.Allow(t0.Add(Window))
	assert.True(t, ok)
	assert.Zero(t, tr.Failures())
	assert.True(t, tr.LockedUntil().IsZero())

	// The next attempt is evaluated normally: one failure is not a lockout.
	assert.False(t, tr.RecordFailure(t0.Add(Window)))
	assert.Equal(t, 1, tr.Failures())
}

func TestTracker_SuccessClears(t *testing.T) {
	var tr Tracker
	now := time.Now()
	tr.RecordFailure(now)
	tr.RecordFailure(now)
	tr.RecordSuccess()
	assert.Zero(t, tr.Failures())
}

func TestCountdownMessage(t *testing.T) {
	assert.Equal(t, "Too many failed attempts. Please try again in 5:00.", CountdownMessage(Window))
	assert.Equal(t, "Too many failed attempts. Please try again in 0:42.", CountdownMessage(41500*time.Millisecond))
	assert.Equal(t, "Too many failed attempts. Please try again in 0:01.", CountdownMessage(0))

	err := &LockedError{Remaining: 90 * time.Second}
	assert.Equal(t, "Too many failed attempts. Please try again in 1:30.", err.Error())
}
