package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lexportal-backend/internal/middleware"
	"lexportal-backend/internal/service/notification"
	"lexportal-backend/pkg/response"
)

// Handler handles notification HTTP requests
type Handler struct {
	notificationService *notification.Service
}

// NewHandler creates a new notification handler
func NewHandler(notificationService *notification.Service) *Handler {
	return &Handler{
		notificationService: notificationService,
	}
}

// GetNotifications retrieves user's notifications
// GET /v1/notifications
func (h *Handler) GetNotifications(c *gin.Context) {
	result, err := h.notificationService.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// MarkAsRead marks a notification as read
// POST /v1/notifications/:id/read
func (h *Handler) MarkAsRead(c *gin.Context) {
	if err := h.notificationService.MarkAsRead(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "Notification marked as read",
	})
}

// MarkAllAsRead marks all notifications as read
// POST /v1/notifications/read-all
func (h *Handler) MarkAllAsRead(c *gin.Context) {
	count, err := h.notificationService.MarkAllAsRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"updated": count,
	})
}
