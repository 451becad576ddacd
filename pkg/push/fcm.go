// Package push delivers short alerts to a user's devices through Firebase
// Cloud Messaging. Devices subscribe to their user's topic, so the backend
// keeps no token registry.
package push

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
)

// maxBodyRunes keeps alerts within what lock screens display
const maxBodyRunes = 160

// Pusher delivers an alert to a user's devices
type Pusher interface {
	Push(ctx context.Context, userID, title, body string) error
}

// sender is the part of *messaging.Client the pusher uses
type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMPusher implements Pusher with FCM topic messages
type FCMPusher struct {
	client sender
}

// NewFCMPusher creates a pusher on the app's messaging client
func NewFCMPusher(ctx context.Context, app *firebase.App) (*FCMPusher, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}
	return &FCMPusher{client: client}, nil
}

// TopicFor returns the FCM topic of userID. Topic names only allow
// [a-zA-Z0-9-_.~%], anything else is replaced.
func TopicFor(userID string) string {
	return "user-" + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == '~', r == '%':
			return r
		}
		return '_'
	}, userID)
}

// Push sends one alert to userID's topic
func (p *FCMPusher) Push(ctx context.Context, userID, title, body string) error {
	if userID == "" {
		return fmt.Errorf("push: empty user id")
	}

	message := &messaging.Message{
		Topic: TopicFor(userID),
		Notification: &messaging.Notification{
			Title: title,
			Body:  truncate(body, maxBodyRunes),
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
	}
	if _, err := p.client.Send(ctx, message); err != nil {
		return fmt.Errorf("failed to send FCM message: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
