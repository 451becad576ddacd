package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"lexportal-backend/internal/domain"
)

// InboxChannel returns the Pub/Sub channel of a user's realtime feed
func InboxChannel(userID string) string {
	return fmt.Sprintf("inbox:%s", userID)
}

// EventPublisher fans inbox events out over Redis Pub/Sub
type EventPublisher struct {
	client *redis.Client
}

// NewEventPublisher creates a new EventPublisher
func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

// Publish sends event to userID's channel
func (p *EventPublisher) Publish(ctx context.Context, userID string, event domain.InboxEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := p.client.Publish(ctx, InboxChannel(userID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe opens a subscription on userID's channel. The caller closes it.
func (p *EventPublisher) Subscribe(ctx context.Context, userID string) (*redis.PubSub, error) {
	pubsub := p.client.Subscribe(ctx, InboxChannel(userID))

	// Wait for the confirmation so no event published afterwards is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return pubsub, nil
}
