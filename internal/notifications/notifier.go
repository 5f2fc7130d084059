// Package notifications provides real-time notification delivery and management.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"kinship/internal/middleware"
	"kinship/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix  = "notifications:user:"
	userChannelPattern = userChannelPrefix + "*"
)

// LocalDelivery hands a payload to the connections held by this process.
type LocalDelivery func(userID uuid.UUID, payload string)

// Notifier publishes per-account notifications through Redis so every
// server instance can deliver them. Without Redis it delivers locally.
type Notifier struct {
	rdb   *redis.Client
	local LocalDelivery
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// SetLocal installs the in-process fallback used when Redis is absent or failing.
func (n *Notifier) SetLocal(deliver LocalDelivery) {
	n.local = deliver
}

// UserChannel derives the Redis channel name for an account.
func UserChannel(userID uuid.UUID) string {
	return userChannelPrefix + userID.String()
}

// PublishUser sends a notification payload to an account's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uuid.UUID, payload string) error {
	if n.rdb == nil {
		n.deliverLocal(userID, payload)
		return nil
	}
	if err := n.rdb.Publish(ctx, UserChannel(userID), payload).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "Notification publish failed, delivering locally",
			slog.String("error", err.Error()))
		n.deliverLocal(userID, payload)
		return nil
	}
	return nil
}

// Notify encodes an event and publishes it to userID.
func (n *Notifier) Notify(ctx context.Context, userID uuid.UUID, eventType string, data any) error {
	payload, err := Encode(eventType, data)
	if err != nil {
		return err
	}
	if err := n.PublishUser(ctx, userID, payload); err != nil {
		return err
	}
	observability.NotificationsPublished.WithLabelValues(eventType).Inc()
	return nil
}

func (n *Notifier) deliverLocal(userID uuid.UUID, payload string) {
	if n.local != nil {
		n.local(userID, payload)
	}
}

// StartPatternSubscriber subscribes to every account channel and calls onMessage
// for each incoming message until ctx is cancelled.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(userID uuid.UUID, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", userChannelPattern, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				userID, err := uuid.Parse(strings.TrimPrefix(msg.Channel, userChannelPrefix))
				if err != nil {
					middleware.Logger.Warn("Invalid notification channel", slog.String("channel", msg.Channel))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("Panic in notification subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(userID, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
