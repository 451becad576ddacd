package assistant

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lexportal-backend/internal/service/assistant"
	"lexportal-backend/pkg/response"
)

// Handler handles assistant HTTP requests
type Handler struct {
	assistantService *assistant.Service
}

// NewHandler creates a new assistant handler
func NewHandler(assistantService *assistant.Service) *Handler {
	return &Handler{
		assistantService: assistantService,
	}
}

// SummarizeRequest carries either inline text or a stored document key
type SummarizeRequest struct {
	Text      string `json:"text"`
	ObjectKey string `json:"objectKey"`
}

// Summarize summarizes text or a document
// POST /v1/assistant/summarize
func (h *Handler) Summarize(c *gin.Context) {
	var req SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	var (
		summary string
		err     error
	)
	if strings.TrimSpace(req.ObjectKey) != "" {
		summary, err = h.assistantService.SummarizeDocument(c.Request.Context(), req.ObjectKey)
	} else {
		summary, err = h.assistantService.Summarize(c.Request.Context(), req.Text)
	}
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"summary": summary,
	})
}

// EstimateRequest describes the case to price
type EstimateRequest struct {
	CaseType    string `json:"caseType" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// Estimate returns a fee range
// POST /v1/assistant/estimate
func (h *Handler) Estimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	estimate, err := h.assistantService.EstimateCost(c.Request.Context(), req.CaseType, req.Description)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, estimate)
}

// ChatRequest is a chatbot question with the turns so far
type ChatRequest struct {
	History  []assistant.ChatTurn `json:"history"`
	Question string               `json:"question" binding:"required"`
}

// Chat answers a chatbot question
// POST /v1/assistant/chat
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	reply, err := h.assistantService.Chat(c.Request.Context(), req.History, req.Question)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"reply": reply,
	})
}
