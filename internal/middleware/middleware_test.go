package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexportal-backend/pkg/jwt"
	"lexportal-backend/pkg/metrics"
	"lexportal-backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func whoAmI(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_id": UserID(c), "role": Role(c)})
}

func TestAuthMiddleware(t *testing.T) {
	manager := jwt.NewJWTManager("test-secret", "portal-api", time.Minute)
	token, err := manager.GenerateAccessToken("c1", "c1@example.com", "Camille", jwt.RoleClient)
	require.NoError(t, err)

	router := gin.New()
	router.GET("/me", AuthMiddleware(manager, "lawyer-1"), whoAmI)

	tests := []struct {
		name   string
		target string
		header string
		status int
	}{
		{"bearer header", "/me", "Bearer " + token, http.StatusOK},
		{"query token", "/me?token=" + token, "", http.StatusOK},
		{"missing", "/me", "", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic " + token, http.StatusUnauthorized},
		{"garbage", "/me", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"user_id":"c1","role":"client"}`, rec.Body.String())
			} else {
				assert.Equal(t, "UNAUTHORIZED", decodeEnvelope(t, rec).Error.Code)
			}
		})
	}
}

func TestAuthMiddleware_LawyerRoleMustMatchLawyerID(t *testing.T) {
	manager := jwt.NewJWTManager("test-secret", "portal-api", time.Minute)
	router := gin.New()
	router.GET("/me", AuthMiddleware(manager, "lawyer-1"), whoAmI)

	tests := []struct {
		name   string
		userID string
		role   string
		status int
	}{
		{"configured lawyer", "lawyer-1", jwt.RoleLawyer, http.StatusOK},
		{"lawyer role for another subject", "intruder", jwt.RoleLawyer, http.StatusForbidden},
		{"client role for the lawyer id", "lawyer-1", jwt.RoleClient, http.StatusForbidden},
		{"client", "c1", jwt.RoleClient, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := manager.GenerateAccessToken(tt.userID, tt.userID+"@example.com", tt.userID, tt.role)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusForbidden {
				assert.Equal(t, "FORBIDDEN", decodeEnvelope(t, rec).Error.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	router := gin.New()
	router.GET("/clients", func(c *gin.Context) {
		c.Set(ContextRole, c.Query("role"))
		c.Next()
	}, RequireRole(jwt.RoleLawyer), whoAmI)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients?role=lawyer", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients?role=client", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeEnvelope(t, rec).Error.Code)
}

func TestRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRateLimiter(client, metrics.NewMetrics("test"), "assistant", 2, time.Minute)
	router := gin.New()
	router.POST("/ask", func(c *gin.Context) {
		c.Set(ContextUserID, c.Query("user"))
		c.Next()
	}, limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	call := func(user string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask?user="+user, nil))
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call("c1").Code)
	second := call("c1")
	assert.Equal(t, http.StatusNoContent, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	blocked := call("c1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decodeEnvelope(t, blocked).Error.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))

	// Counters are per user
	assert.Equal(t, http.StatusNoContent, call("c2").Code)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusNoContent, call("c1").Code)
}

func TestRateLimiter_FailOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	router := gin.New()
	router.POST("/ask", NewRateLimiter(client, nil, "assistant", 1, time.Minute).Middleware(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTimeoutMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(NewTimeoutMiddleware(&TimeoutConfig{DefaultTimeout: 10 * time.Millisecond}).Middleware())
	router.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	router.GET("/fast", func(c *gin.Context) {
		_, hasDeadline := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"deadline": hasDeadline})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "REQUEST_TIMEOUT", decodeEnvelope(t, rec).Error.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fast", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deadline":true}`, rec.Body.String())
}

func TestCORSMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(CORSMiddleware([]string{"https://portal.example.com"}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://portal.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestLogger())
	router.GET("/ping", func(c *gin.Context) {
		response.Success(c, http.StatusOK, nil)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-123", decodeEnvelope(t, rec).Meta.RequestID)
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(Recovery())
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeEnvelope(t, rec).Error.Code)
}
