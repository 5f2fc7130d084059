package server

import (
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"kinship/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocket_RefusalIsValidJSON(t *testing.T) {
	ts := newTestServer(t, "realtime")
	member := testutil.CreateMember(t, ts.db, "crowded")

	// Fill the member's connection slots.
	for {
		if _, err := ts.srv.hub.Register(member.ID, nil); err != nil {
			break
		}
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = ts.app.Listener(ln) }()
	t.Cleanup(func() { _ = ts.app.Shutdown() })

	header := http.Header{"Authorization": {"Bearer " + tokenFor(t, member)}}
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/ws", header)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]string
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, "user connection limit reached", frame["error"])
}
