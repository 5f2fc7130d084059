package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinship_redis_errors_total",
		Help: "Total number of Redis command errors",
	}, []string{"command"})

	// AuthAttempts counts identity operations by outcome.
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinship_auth_attempts_total",
		Help: "Identity operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// Lockouts counts lockouts started by the server-side guard.
	Lockouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinship_lockouts_total",
		Help: "Lockouts started after repeated failures",
	}, []string{"operation"})

	// PolicyDenials counts authorization denials by table and operation.
	PolicyDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinship_policy_denials_total",
		Help: "Row authorization denials",
	}, []string{"table", "operation"})

	// WebSocketConnections is the number of open notification sockets.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kinship_websocket_connections",
		Help: "Open notification WebSocket connections",
	})

	// WebSocketDrops counts outbound messages dropped for slow or closed clients.
	WebSocketDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinship_websocket_dropped_messages_total",
		Help: "Outbound WebSocket messages dropped by reason",
	}, []string{"reason"})

	// NotificationsPublished counts realtime events by type.
	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinship_notifications_published_total",
		Help: "Realtime notifications published by event type",
	}, []string{"event"})
)

// RecordAuth increments AuthAttempts.
func RecordAuth(operation, outcome string) {
	AuthAttempts.WithLabelValues(operation, outcome).Inc()
}
