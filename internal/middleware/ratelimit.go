package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "lexportal-backend/pkg/errors"
	"lexportal-backend/pkg/logger"
	"lexportal-backend/pkg/metrics"
	"lexportal-backend/pkg/response"
)

// RateLimiter implements a fixed-window Redis rate limit
type RateLimiter struct {
	redisClient *redis.Client
	metrics     *metrics.Metrics
	scope       string
	requests    int
	window      time.Duration
}

// NewRateLimiter creates a new rate limiter.
// scope namespaces the counters so several limited route groups never share one.
// m may be nil.
func NewRateLimiter(redisClient *redis.Client, m *metrics.Metrics, scope string, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		metrics:     m,
		scope:       scope,
		requests:    requests,
		window:      window,
	}
}

// Middleware returns a Gin middleware for rate limiting. Authenticated users
// are limited per user, anonymous callers per IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := "ip:" + c.ClientIP()
		if userID := UserID(c); userID != "" {
			identifier = "user:" + userID
		}

		count, ttl, err := rl.hit(c.Request.Context(), identifier)
		if err != nil {
			// Fail-open: Redis trouble must not take the assistant down
			logger.FromContext(c.Request.Context()).Warn("Rate limit check failed",
				zap.String("scope", rl.scope),
				zap.Error(err))
			c.Next()
			return
		}

		remaining := rl.requests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

		if int(count) > rl.requests {
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitBlocked(c.FullPath())
			}
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())+1))
			appErr := apperrors.RateLimitExceededError()
			response.Error(c, http.StatusTooManyRequests, string(appErr.Code), appErr.Message)
			c.Abort()
			return
		}

		c.Next()
	}
}

// hit counts one request in the current window and returns the count and
// the time left in the window
func (rl *RateLimiter) hit(ctx context.Context, identifier string) (int64, time.Duration, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", rl.scope, identifier)

	count, err := rl.redisClient.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count request: %w", err)
	}

	left, err := rl.redisClient.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read window: %w", err)
	}
	// A first hit, or a key that lost its expiry, opens a new window
	if count == 1 || left < 0 {
		if err := rl.redisClient.Expire(ctx, key, rl.window).Err(); err != nil {
			return 0, 0, fmt.Errorf("failed to open window: %w", err)
		}
		left = rl.window
	}
	return count, left, nil
}
