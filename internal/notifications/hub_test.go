package notifications

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	hub := NewHub()
	alice, bob := uuid.New(), uuid.New()

	a1, err := hub.Register(alice, nil)
	require.NoError(t, err)
	a2, err := hub.Register(alice, nil)
	require.NoError(t, err)
	b1, err := hub.Register(bob, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, hub.Count())

	hub.Broadcast(alice, "hello")
	assert.Equal(t, "hello", string(<-a1.Send))
	assert.Equal(t, "hello", string(<-a2.Send))
	assert.Empty(t, b1.Send)

	hub.UnregisterClient(a1)
	hub.UnregisterClient(a1)
	assert.Equal(t, 2, hub.Count())
	assert.True(t, hub.IsOnline(alice))

	hub.UnregisterClient(a2)
	assert.False(t, hub.IsOnline(alice))

	// Sending to a closed client is dropped, not a panic.
	a2.TrySend([]byte("late"))

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.Count())
	_, open := <-b1.Send
	assert.False(t, open)
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub()
	id := uuid.New()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(id, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(id, nil)
	assert.ErrorIs(t, err, ErrUserFull)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(uuid.New(), nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer+5; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, sendBuffer)
}
