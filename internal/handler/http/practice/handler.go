package practice

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/middleware"
	"lexportal-backend/internal/service/practice"
	"lexportal-backend/pkg/jwt"
	"lexportal-backend/pkg/response"
)

// Handler handles client, case, appointment and invoice HTTP requests
type Handler struct {
	practiceService *practice.Service
}

// NewHandler creates a new practice handler
func NewHandler(practiceService *practice.Service) *Handler {
	return &Handler{
		practiceService: practiceService,
	}
}

// scopeClientID returns the client a listing is limited to: clients only
// ever see their own items, the lawyer may filter with ?clientId=
func scopeClientID(c *gin.Context) string {
	if middleware.Role(c) == jwt.RoleClient {
		return middleware.UserID(c)
	}
	return c.Query("clientId")
}

// ownsOrLawyer rejects a client touching another client's data
func ownsOrLawyer(c *gin.Context, clientID string) bool {
	if middleware.Role(c) == jwt.RoleLawyer || middleware.UserID(c) == clientID {
		return true
	}
	response.Forbidden(c, "Not allowed")
	return false
}

// CreateClient adds a client to the roster
// POST /v1/clients
func (h *Handler) CreateClient(c *gin.Context) {
	var req practice.CreateClientInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	client, err := h.practiceService.CreateClient(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, client)
}

// ListClients returns the roster
// GET /v1/clients
func (h *Handler) ListClients(c *gin.Context) {
	clients, err := h.practiceService.ListClients(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"clients": clients,
	})
}

// GetClient retrieves a client profile
// GET /v1/clients/:id
func (h *Handler) GetClient(c *gin.Context) {
	clientID := c.Param("id")
	if !ownsOrLawyer(c, clientID) {
		return
	}

	client, err := h.practiceService.GetClient(c.Request.Context(), clientID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, client)
}

// UpdateClient updates a client profile
// PUT /v1/clients/:id
func (h *Handler) UpdateClient(c *gin.Context) {
	clientID := c.Param("id")
	if !ownsOrLawyer(c, clientID) {
		return
	}

	var req domain.ClientProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	client, err := h.practiceService.UpdateClientProfile(c.Request.Context(), clientID, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, client)
}

// CreateCase opens a case
// POST /v1/cases
func (h *Handler) CreateCase(c *gin.Context) {
	var req practice.CreateCaseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	created, err := h.practiceService.CreateCase(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, created)
}

// ListCases lists cases
// GET /v1/cases
func (h *Handler) ListCases(c *gin.Context) {
	cases, err := h.practiceService.ListCases(c.Request.Context(), scopeClientID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"cases": cases,
	})
}

// GetCase returns a case with its appointments
// GET /v1/cases/:id
func (h *Handler) GetCase(c *gin.Context) {
	detail, err := h.practiceService.GetCase(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	if !ownsOrLawyer(c, detail.ClientID) {
		return
	}

	response.Success(c, http.StatusOK, detail)
}

// CloseCase closes a case
// POST /v1/cases/:id/close
func (h *Handler) CloseCase(c *gin.Context) {
	closed, err := h.practiceService.CloseCase(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, closed)
}

// RequestAppointment books an appointment
// POST /v1/appointments
func (h *Handler) RequestAppointment(c *gin.Context) {
	var req practice.RequestAppointmentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}
	req.ActingUserID = middleware.UserID(c)

	appointment, err := h.practiceService.RequestAppointment(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, appointment)
}

// ListAppointments lists appointments
// GET /v1/appointments
func (h *Handler) ListAppointments(c *gin.Context) {
	appointments, err := h.practiceService.ListAppointments(c.Request.Context(), scopeClientID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"appointments": appointments,
	})
}

// UpdateAppointmentStatus confirms or cancels an appointment
// POST /v1/appointments/:id/status
func (h *Handler) UpdateAppointmentStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required,oneof=confirmed cancelled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	appointment, err := h.practiceService.UpdateAppointmentStatus(c.Request.Context(), c.Param("id"), req.Status, middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, appointment)
}

// RescheduleAppointment moves an appointment
// POST /v1/appointments/:id/reschedule
func (h *Handler) RescheduleAppointment(c *gin.Context) {
	var req struct {
		Date time.Time `json:"date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	appointment, err := h.practiceService.RescheduleAppointment(c.Request.Context(), c.Param("id"), req.Date, middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, appointment)
}

// CreateInvoice bills a client
// POST /v1/invoices
func (h *Handler) CreateInvoice(c *gin.Context) {
	var req practice.CreateInvoiceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	invoice, err := h.practiceService.CreateInvoice(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, invoice)
}

// ListInvoices lists invoices
// GET /v1/invoices
func (h *Handler) ListInvoices(c *gin.Context) {
	invoices, err := h.practiceService.ListInvoices(c.Request.Context(), scopeClientID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"invoices": invoices,
	})
}

// PayInvoice records a payment
// POST /v1/invoices/:id/pay
func (h *Handler) PayInvoice(c *gin.Context) {
	invoice, err := h.practiceService.RecordPayment(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, invoice)
}
