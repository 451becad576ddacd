package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/middleware"
	"lexportal-backend/internal/repository/memory"
	"lexportal-backend/internal/service/notification"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newRouter(t *testing.T) (*gin.Engine, *notification.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := notification.NewService(memory.NewStore(), nil)
	h := NewHandler(svc)

	router := gin.New()
	v1 := router.Group("/v1", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, c.GetHeader("X-User"))
		c.Next()
	})
	v1.GET("/notifications", h.GetNotifications)
	v1.POST("/notifications/:id/read", h.MarkAsRead)
	v1.POST("/notifications/read-all", h.MarkAllAsRead)
	return router, svc
}

func do(t *testing.T, router *gin.Engine, method, path, user string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-User", user)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func listFor(t *testing.T, router *gin.Engine, user string) domain.NotificationListResponse {
	t.Helper()
	code, env := do(t, router, http.MethodGet, "/v1/notifications", user)
	require.Equal(t, http.StatusOK, code)
	var list domain.NotificationListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	return list
}

func TestNotificationInbox(t *testing.T) {
	router, svc := newRouter(t)
	ctx := context.Background()
	svc.Notify(ctx, "c1", "Votre rendez-vous est confirmé")
	svc.Notify(ctx, "c1", "Nouvelle facture")
	svc.Notify(ctx, "c2", "Autre client")

	list := listFor(t, router, "c1")
	require.Len(t, list.Notifications, 2)
	assert.Equal(t, 2, list.UnreadCount)

	// Someone else's notification is invisible
	code, env := do(t, router, http.MethodPost, "/v1/notifications/"+list.Notifications[0].ID+"/read", "c2")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	code, env = do(t, router, http.MethodPost, "/v1/notifications/"+list.Notifications[0].ID+"/read", "c1")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, 1, listFor(t, router, "c1").UnreadCount)

	code, env = do(t, router, http.MethodPost, "/v1/notifications/read-all", "c1")
	require.Equal(t, http.StatusOK, code)
	var updated struct {
		Updated int `json:"updated"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, 1, updated.Updated)
	assert.Equal(t, 0, listFor(t, router, "c1").UnreadCount)
	assert.Equal(t, 1, listFor(t, router, "c2").UnreadCount)
}
