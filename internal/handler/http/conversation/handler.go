package conversation

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/middleware"
	"lexportal-backend/internal/service/conversation"
	"lexportal-backend/pkg/jwt"
	"lexportal-backend/pkg/response"
)

// Handler handles conversation HTTP requests
type Handler struct {
	conversationService *conversation.Service
}

// NewHandler creates a new conversation handler
func NewHandler(conversationService *conversation.Service) *Handler {
	return &Handler{
		conversationService: conversationService,
	}
}

// SendMessageRequest represents send message request. ConversationID is a
// persisted id or a "client-<id>" placeholder; ClientID addresses a client's
// general conversation directly.
type SendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	ClientID       string `json:"clientId"`
	Content        string `json:"content" binding:"required"`
}

// SendMessage sends a message
// POST /v1/messages
func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	senderID := middleware.UserID(c)
	ref := domain.ParseConversationRef(req.ConversationID)
	if ref.IsZero() {
		clientID := strings.TrimSpace(req.ClientID)
		if clientID == "" && middleware.Role(c) == jwt.RoleClient {
			clientID = senderID
		}
		if clientID == "" {
			response.ValidationError(c, "conversationId or clientId is required")
			return
		}
		ref = domain.PendingRef(clientID)
	}

	out, err := h.conversationService.SendMessage(c.Request.Context(), &conversation.SendMessageInput{
		Ref:      ref,
		SenderID: senderID,
		Content:  req.Content,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, out)
}

// GetConversations lists the caller's conversations. The lawyer gets the
// whole roster, placeholders included.
// GET /v1/conversations
func (h *Handler) GetConversations(c *gin.Context) {
	var (
		conversations []domain.Conversation
		err           error
	)
	if middleware.UserID(c) == h.conversationService.LawyerID() {
		conversations, err = h.conversationService.GetConversationsForLawyer(c.Request.Context())
	} else {
		conversations, err = h.conversationService.GetConversationsForClient(c.Request.Context(), middleware.UserID(c))
	}
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"conversations": conversations,
	})
}

// GetConversation opens a conversation
// GET /v1/conversations/:id
func (h *Handler) GetConversation(c *gin.Context) {
	ref := domain.ParseConversationRef(c.Param("id"))

	conv, err := h.conversationService.OpenConversation(c.Request.Context(), ref, middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, conv)
}

// MarkAsRead clears the unread count when the caller is the conversation's
// client. Any other caller gets updated=false.
// POST /v1/conversations/:id/read
func (h *Handler) MarkAsRead(c *gin.Context) {
	ref := domain.ParseConversationRef(c.Param("id"))

	updated, err := h.conversationService.MarkConversationAsRead(c.Request.Context(), ref, middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"updated": updated,
	})
}
