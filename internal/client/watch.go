package client

import (
	"context"
	"fmt"
	"net/http"

	"kinship/internal/notifications"

	"github.com/gorilla/websocket"
)

// Watch streams realtime events until ctx is done or the server closes the
// socket. Each event is applied to the Session before onEvent sees it.
func (s *Session) Watch(ctx context.Context, onEvent func(notifications.Event)) error {
	token, err := s.authed()
	if err != nil {
		return err
	}

	u := *s.client.base
	u.Path = s.client.base.Path + "/api/ws"
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := s.client.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer func() { _ = resp.Body.Close() }()
			return decodeError(resp)
		}
		return fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		evt, err := notifications.Decode(data)
		if err != nil {
			continue
		}
		s.HandleEvent(*evt)
		if onEvent != nil {
			onEvent(*evt)
		}
	}
}
