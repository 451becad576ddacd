package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Portal metrics for the messaging core and its side effects
var (
	// Message lifecycle
	PortalMessagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_messages_sent_total",
		Help: "Total number of messages appended to conversations",
	}, []string{"sender_role"}) // "client", "lawyer"

	PortalMessageSendFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_message_send_failed_total",
		Help: "Total number of message sends that did not persist",
	}, []string{"reason"})

	// Conversation lifecycle
	PortalConversationsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_conversations_created_total",
		Help: "Total number of conversations created",
	}, []string{"kind"}) // "general", "case"

	PortalPlaceholdersResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_placeholders_resolved_total",
		Help: "Total number of sends addressed to a pending (placeholder) conversation",
	})

	// Notification side effects
	PortalNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_notifications_total",
		Help: "Total number of notification writes",
	}, []string{"status"}) // "created", "failed"

	PortalPushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_pushes_total",
		Help: "Total number of device alerts sent through FCM",
	}, []string{"status"}) // "sent", "failed"

	// Realtime fan-out
	PortalEventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_events_published_total",
		Help: "Total number of realtime events published to Redis",
	}, []string{"status"})

	PortalWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portal_websocket_connections",
		Help: "Current number of active inbox WebSocket connections",
	})

	// Assistant
	PortalCompletionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_completion_duration_seconds",
		Help:    "Latency of text-completion calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"flow", "status"})
)
