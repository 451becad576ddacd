package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lexportal-backend/pkg/logger"
	"lexportal-backend/pkg/response"
)

// TimeoutConfig holds timeout configuration
type TimeoutConfig struct {
	DefaultTimeout time.Duration
}

// DefaultTimeoutConfig returns default timeout configuration
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		DefaultTimeout: 30 * time.Second,
	}
}

// TimeoutMiddleware bounds the request context of every handler
type TimeoutMiddleware struct {
	config *TimeoutConfig
}

// NewTimeoutMiddleware creates a new timeout middleware
func NewTimeoutMiddleware(config *TimeoutConfig) *TimeoutMiddleware {
	if config == nil {
		config = DefaultTimeoutConfig()
	}
	return &TimeoutMiddleware{config: config}
}

// Middleware returns a Gin middleware for timeout protection. Handlers see
// the deadline through their request context; when one returns without
// writing after the deadline, a 504 is sent.
func (tm *TimeoutMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), tm.config.DefaultTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			logger.FromContext(ctx).Warn("Request timed out",
				zap.Duration("timeout", tm.config.DefaultTimeout),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path))

			response.Error(c, http.StatusGatewayTimeout, "REQUEST_TIMEOUT", "Request timeout")
			c.Abort()
		}
	}
}
