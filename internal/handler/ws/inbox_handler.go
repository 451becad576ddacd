// Package ws serves the realtime inbox feed. Each connection follows its
// user's Redis channel, so any replica can serve any user.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lexportal-backend/internal/middleware"
	"lexportal-backend/pkg/logger"
	"lexportal-backend/pkg/metrics"
	"lexportal-backend/pkg/response"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Subscriber opens a user's realtime channel
type Subscriber interface {
	Subscribe(ctx context.Context, userID string) (*redis.PubSub, error)
}

// InboxHandler upgrades authenticated requests to a websocket carrying the
// user's inbox events
type InboxHandler struct {
	subscriber Subscriber
	upgrader   websocket.Upgrader
}

// NewInboxHandler creates a new inbox handler. Browsers must come from one
// of allowedOrigins; requests without an Origin header are accepted.
func NewInboxHandler(subscriber Subscriber, allowedOrigins []string) *InboxHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = true
	}

	return &InboxHandler{
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins[origin]
			},
		},
	}
}

// ServeWS handles WebSocket requests
// GET /v1/ws/inbox
func (h *InboxHandler) ServeWS(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	// The subscription outlives the HTTP request context
	ctx, cancel := context.WithCancel(context.Background())
	pubsub, err := h.subscriber.Subscribe(ctx, userID)
	if err != nil {
		cancel()
		logger.FromContext(c.Request.Context()).Warn("Inbox subscription failed",
			zap.String("user_id", userID),
			zap.Error(err))
		response.Error(c, http.StatusServiceUnavailable, "STORE_ERROR", "Realtime feed unavailable")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cancel()
		_ = pubsub.Close()
		logger.FromContext(c.Request.Context()).Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}

	metrics.PortalWebSocketConnections.Inc()
	client := &inboxClient{conn: conn, pubsub: pubsub, userID: userID, cancel: cancel}
	go client.writePump(ctx)
	go client.readPump()
}

type inboxClient struct {
	conn   *websocket.Conn
	pubsub *redis.PubSub
	userID string
	cancel context.CancelFunc
}

// readPump only services control frames; the feed is one-way. It returns
// when the peer goes away and then stops the writer.
func (c *inboxClient) readPump() {
	defer c.cancel()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Inbox socket closed", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
	}
}

// writePump forwards channel payloads verbatim and keeps the socket alive
func (c *inboxClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.pubsub.Close()
		_ = c.conn.Close()
		metrics.PortalWebSocketConnections.Dec()
	}()

	events := c.pubsub.Channel()
	for {
		select {
		case msg, ok := <-events:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
