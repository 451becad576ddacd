package domain

import "time"

// Inbox event types
const (
	EventMessage      = "message"
	EventNotification = "notification"
)

// InboxEvent is pushed to a user's realtime feed
type InboxEvent struct {
	Type           string        `json:"type"`
	ConversationID string        `json:"conversationId,omitempty"`
	Message        *Message      `json:"message,omitempty"`
	Notification   *Notification `json:"notification,omitempty"`
	At             time.Time     `json:"at"`
}
