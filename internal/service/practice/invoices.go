package practice

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/repository/docstore"
	apperrors "lexportal-backend/pkg/errors"
	"lexportal-backend/pkg/sanitize"
)

// DefaultCurrency applies when an invoice has none
const DefaultCurrency = "EUR"

// CreateInvoiceInput contains invoice data
type CreateInvoiceInput struct {
	ClientID    string    `json:"clientId" binding:"required"`
	CaseID      string    `json:"caseId"`
	Description string    `json:"description" binding:"required"`
	Amount      float64   `json:"amount" binding:"required"`
	Currency    string    `json:"currency"`
	DueDate     time.Time `json:"dueDate"`
}

// CreateInvoice bills a client and tells them
func (s *Service) CreateInvoice(ctx context.Context, input *CreateInvoiceInput) (*domain.Invoice, error) {
	description := sanitize.Line(input.Description)
	switch {
	case input.ClientID == "":
		return nil, apperrors.MissingFieldError("clientId")
	case description == "":
		return nil, apperrors.MissingFieldError("description")
	case input.Amount <= 0:
		return nil, apperrors.InvalidInputError("Amount must be positive")
	}

	if _, err := s.GetClient(ctx, input.ClientID); err != nil {
		return nil, err
	}
	if input.CaseID != "" {
		c, err := s.getCase(ctx, input.CaseID)
		if err != nil {
			return nil, err
		}
		if c.ClientID != input.ClientID {
			return nil, apperrors.InvalidInputError("Case belongs to another client")
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	now := s.now()
	dueDate := input.DueDate.UTC()
	if input.DueDate.IsZero() {
		dueDate = now.AddDate(0, 0, 30)
	}

	invoice := domain.Invoice{
		ID:          s.newID(),
		ClientID:    input.ClientID,
		CaseID:      input.CaseID,
		Description: description,
		Amount:      input.Amount,
		Currency:    currency,
		Status:      domain.InvoiceUnpaid,
		DueDate:     dueDate,
		CreatedAt:   now,
	}
	if err := s.store.Create(ctx, docstore.CollectionInvoices, invoice.ID, invoice); err != nil {
		return nil, docstore.AsAppError(err, "Invoice")
	}

	s.notifier.Notify(ctx, invoice.ClientID,
		fmt.Sprintf("New invoice: %s, %.2f %s due %s.", description, invoice.Amount, currency, dueDate.Format("02/01/2006")))
	return &invoice, nil
}

// RecordPayment marks an invoice paid and tells the counterpart
func (s *Service) RecordPayment(ctx context.Context, invoiceID, actingUserID string) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := s.store.Mutate(ctx, docstore.CollectionInvoices, invoiceID, &invoice, func() error {
		if !s.canAct(actingUserID, invoice.ClientID) {
			return apperrors.ForbiddenError("Not allowed to pay this invoice")
		}
		if invoice.Status == domain.InvoicePaid {
			return apperrors.ConflictError("Invoice is already paid")
		}
		paidAt := s.now()
		invoice.Status = domain.InvoicePaid
		invoice.PaidAt = &paidAt
		return nil
	})
	if err != nil {
		return nil, docstore.AsAppError(err, "Invoice")
	}

	s.notifier.Notify(ctx, s.counterpartOf(actingUserID, invoice.ClientID),
		fmt.Sprintf("Payment received: %s, %.2f %s.", invoice.Description, invoice.Amount, invoice.Currency))
	return &invoice, nil
}

// GetInvoice retrieves an invoice by id
func (s *Service) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	var invoice domain.Invoice
	if err := s.store.Get(ctx, docstore.CollectionInvoices, invoiceID, &invoice); err != nil {
		return nil, docstore.AsAppError(err, "Invoice")
	}
	return &invoice, nil
}

// ListInvoices returns invoices, newest first, optionally limited to one client
func (s *Service) ListInvoices(ctx context.Context, clientID string) ([]domain.Invoice, error) {
	var filters []docstore.Filter
	if clientID != "" {
		filters = append(filters, docstore.Eq("clientId", clientID))
	}

	var invoices []domain.Invoice
	if err := s.store.Query(ctx, docstore.CollectionInvoices, filters, &invoices); err != nil {
		return nil, docstore.AsAppError(err, "Invoice")
	}
	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].CreatedAt.After(invoices[j].CreatedAt)
	})
	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	return invoices, nil
}
