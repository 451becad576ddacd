package practice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/repository/docstore"
	apperrors "lexportal-backend/pkg/errors"
	"lexportal-backend/pkg/logger"
	"lexportal-backend/pkg/sanitize"
)

// CreateCaseInput contains case data
type CreateCaseInput struct {
	ClientID    string `json:"clientId" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	CaseNumber  string `json:"caseNumber"`
}

// CreateCase opens a case for a client together with its conversation
func (s *Service) CreateCase(ctx context.Context, input *CreateCaseInput) (*domain.Case, error) {
	title := sanitize.Line(input.Title)
	if input.ClientID == "" {
		return nil, apperrors.MissingFieldError("clientId")
	}
	if title == "" {
		return nil, apperrors.MissingFieldError("title")
	}
	if _, err := s.GetClient(ctx, input.ClientID); err != nil {
		return nil, err
	}

	now := s.now()
	c := domain.Case{
		ID:          s.newID(),
		CaseNumber:  strings.TrimSpace(input.CaseNumber),
		ClientID:    input.ClientID,
		Title:       title,
		Description: sanitize.Text(input.Description),
		Status:      domain.CaseStatusOpen,
		CreatedAt:   now,
	}
	if c.CaseNumber == "" {
		c.CaseNumber = fmt.Sprintf("%d-%s", now.Year(), strings.ToUpper(c.ID[:6]))
	}

	if err := s.store.Create(ctx, docstore.CollectionCases, c.ID, c); err != nil {
		return nil, docstore.AsAppError(err, "Case")
	}

	if _, err := s.conversations.CreateCaseConversation(ctx, &c); err != nil {
		// Case conversation creation is idempotent and can be replayed
		logger.FromContext(ctx).Warn("Failed to create case conversation",
			zap.String("case_id", c.ID),
			zap.Error(err))
	}

	logger.FromContext(ctx).Info("Case created",
		zap.String("case_id", c.ID),
		zap.String("client_id", c.ClientID))
	return &c, nil
}

// ListCases returns cases, newest first, optionally limited to one client
func (s *Service) ListCases(ctx context.Context, clientID string) ([]domain.Case, error) {
	var filters []docstore.Filter
	if clientID != "" {
		filters = append(filters, docstore.Eq("clientId", clientID))
	}

	var cases []domain.Case
	if err := s.store.Query(ctx, docstore.CollectionCases, filters, &cases); err != nil {
		return nil, docstore.AsAppError(err, "Case")
	}
	sort.SliceStable(cases, func(i, j int) bool {
		return cases[i].CreatedAt.After(cases[j].CreatedAt)
	})
	if cases == nil {
		cases = []domain.Case{}
	}
	return cases, nil
}

// GetCase returns a case joined with its appointments in date order
func (s *Service) GetCase(ctx context.Context, caseID string) (*domain.CaseDetail, error) {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	appointments, err := s.queryAppointments(ctx, docstore.Eq("caseId", caseID))
	if err != nil {
		return nil, err
	}

	return &domain.CaseDetail{Case: *c, Appointments: appointments}, nil
}

// CloseCase closes a case and tells the client. Closing a closed case
// changes nothing and sends nothing.
func (s *Service) CloseCase(ctx context.Context, caseID string) (*domain.Case, error) {
	var c domain.Case
	err := s.store.Mutate(ctx, docstore.CollectionCases, caseID, &c, func() error {
		if c.Status == domain.CaseStatusClosed {
			return errNoChange
		}
		closedAt := s.now()
		c.Status = domain.CaseStatusClosed
		c.ClosedAt = &closedAt
		return nil
	})
	if errors.Is(err, errNoChange) {
		return &c, nil
	}
	if err != nil {
		return nil, docstore.AsAppError(err, "Case")
	}

	s.notifier.Notify(ctx, c.ClientID, fmt.Sprintf("Your case %s (%s) has been closed.", c.CaseNumber, c.Title))
	return &c, nil
}

func (s *Service) getCase(ctx context.Context, caseID string) (*domain.Case, error) {
	if caseID == "" {
		return nil, apperrors.MissingFieldError("caseId")
	}
	var c domain.Case
	if err := s.store.Get(ctx, docstore.CollectionCases, caseID, &c); err != nil {
		return nil, docstore.AsAppError(err, "Case")
	}
	return &c, nil
}
