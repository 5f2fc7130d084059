package notifications

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types delivered over the notification socket.
const (
	EventFriendshipRequested = "friendship.requested"
	EventFriendshipUpdated   = "friendship.updated"
	EventSignedOut           = "auth.signed_out"
)

// Event is the envelope written to clients.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  time.Time       `json:"sent_at"`
}

// Encode wraps data in an Event and returns its JSON form.
func Encode(eventType string, data any) (string, error) {
	ev := Event{Type: eventType, SentAt: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		ev.Payload = raw
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(b), nil
}

// Decode parses an encoded Event.
func Decode(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}
