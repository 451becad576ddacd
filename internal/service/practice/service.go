// Package practice implements the portal features around the messaging
// core: the client roster, cases, appointments and invoices. State changes
// that concern the other party emit a best-effort notification.
package practice

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/repository/docstore"
	apperrors "lexportal-backend/pkg/errors"
	"lexportal-backend/pkg/logger"
	"lexportal-backend/pkg/sanitize"
)

// dateLayout renders dates inside notification texts
const dateLayout = "02/01/2006 15:04"

// errNoChange aborts a Mutate that has nothing to write
var errNoChange = errors.New("no change")

// Notifier emits best-effort notifications
type Notifier interface {
	Notify(ctx context.Context, userID, message string)
}

// Conversations is the part of the conversation service cases depend on
type Conversations interface {
	CreateCaseConversation(ctx context.Context, c *domain.Case) (*domain.Conversation, error)
	RefreshClientIdentity(ctx context.Context, client *domain.Client) error
}

// Service handles practice business logic
type Service struct {
	store         docstore.Store
	conversations Conversations
	notifier      Notifier
	lawyerID      string
	now           func() time.Time
	newID         func() string
}

// NewService creates a new practice service
func NewService(store docstore.Store, conversations Conversations, notifier Notifier, lawyerID string) *Service {
	return &Service{
		store:         store,
		conversations: conversations,
		notifier:      notifier,
		lawyerID:      lawyerID,
		now:           func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID:         uuid.NewString,
	}
}

// CreateClientInput contains client data
type CreateClientInput struct {
	Name   string `json:"name" binding:"required"`
	Email  string `json:"email" binding:"required"`
	Phone  string `json:"phone"`
	Avatar string `json:"avatar"`
}

// CreateClient adds a client to the roster
func (s *Service) CreateClient(ctx context.Context, input *CreateClientInput) (*domain.Client, error) {
	client := domain.Client{
		ID:        s.newID(),
		Name:      sanitize.Line(input.Name),
		Email:     sanitize.Email(input.Email),
		Phone:     sanitize.Phone(input.Phone),
		Avatar:    strings.TrimSpace(input.Avatar),
		CreatedAt: s.now(),
	}
	if err := validateClient(&client); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, docstore.CollectionClients, client.ID, client); err != nil {
		return nil, docstore.AsAppError(err, "Client")
	}

	logger.FromContext(ctx).Info("Client created", zap.String("client_id", client.ID))
	return &client, nil
}

// ListClients returns the roster sorted by name
func (s *Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	var clients []domain.Client
	if err := s.store.Query(ctx, docstore.CollectionClients, nil, &clients); err != nil {
		return nil, docstore.AsAppError(err, "Client")
	}
	domain.SortClients(clients)
	if clients == nil {
		clients = []domain.Client{}
	}
	return clients, nil
}

// GetClient retrieves a client by id
func (s *Service) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	var client domain.Client
	if err := s.store.Get(ctx, docstore.CollectionClients, clientID, &client); err != nil {
		return nil, docstore.AsAppError(err, "Client")
	}
	return &client, nil
}

// UpdateClientProfile applies the non-nil fields and refreshes the client
// identity copied onto conversations
func (s *Service) UpdateClientProfile(ctx context.Context, clientID string, update *domain.ClientProfileUpdate) (*domain.Client, error) {
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if update.Name != nil {
		client.Name = sanitize.Line(*update.Name)
		fields["name"] = client.Name
	}
	if update.Email != nil {
		client.Email = sanitize.Email(*update.Email)
		fields["email"] = client.Email
	}
	if update.Phone != nil {
		client.Phone = sanitize.Phone(*update.Phone)
		fields["phone"] = client.Phone
	}
	if update.Avatar != nil {
		client.Avatar = strings.TrimSpace(*update.Avatar)
		fields["avatar"] = client.Avatar
	}
	if len(fields) == 0 {
		return client, nil
	}
	if err := validateClient(client); err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, docstore.CollectionClients, clientID, fields, true); err != nil {
		return nil, docstore.AsAppError(err, "Client")
	}

	_, nameChanged := fields["name"]
	_, avatarChanged := fields["avatar"]
	if nameChanged || avatarChanged {
		// The conversation copies converge on the next successful refresh
		if err := s.conversations.RefreshClientIdentity(ctx, client); err != nil {
			logger.FromContext(ctx).Warn("Failed to refresh client identity on conversations",
				zap.String("client_id", clientID),
				zap.Error(err))
		}
	}

	return client, nil
}

func validateClient(client *domain.Client) error {
	if client.Name == "" {
		return apperrors.MissingFieldError("name")
	}
	if client.Email == "" {
		return apperrors.MissingFieldError("email")
	}
	if _, err := mail.ParseAddress(client.Email); err != nil {
		return apperrors.InvalidInputError("Invalid email address")
	}
	return nil
}

// counterpartOf returns who should hear about an action on a client's item
func (s *Service) counterpartOf(actingUserID, clientID string) string {
	if actingUserID == s.lawyerID {
		return clientID
	}
	return s.lawyerID
}

// canAct reports whether actingUserID may change an item of clientID
func (s *Service) canAct(actingUserID, clientID string) bool {
	return actingUserID != "" && (actingUserID == s.lawyerID || actingUserID == clientID)
}
