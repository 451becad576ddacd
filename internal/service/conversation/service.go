package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/repository/docstore"
	apperrors "lexportal-backend/pkg/errors"
	"lexportal-backend/pkg/logger"
	"lexportal-backend/pkg/metrics"
	"lexportal-backend/pkg/sanitize"
)

// EventPublisher pushes realtime events to a user's inbox feed
type EventPublisher interface {
	Publish(ctx context.Context, userID string, event domain.InboxEvent) error
}

// Config holds the practice-level settings of the service
type Config struct {
	// LawyerID is the practice's single lawyer account
	LawyerID string
	// PersistLawyerRead writes the lawyer-side unread reset to the store
	PersistLawyerRead bool
}

// Service handles conversation lifecycle, message appends and unread state
type Service struct {
	store             docstore.Store
	publisher         EventPublisher // optional
	lawyerID          string
	persistLawyerRead bool
	now               func() time.Time
	newID             func() string
}

// NewService creates a new conversation service. publisher may be nil.
func NewService(store docstore.Store, publisher EventPublisher, cfg Config) *Service {
	return &Service{
		store:             store,
		publisher:         publisher,
		lawyerID:          cfg.LawyerID,
		persistLawyerRead: cfg.PersistLawyerRead,
		now:               func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID:             uuid.NewString,
	}
}

// LawyerID returns the configured lawyer account
func (s *Service) LawyerID() string {
	return s.lawyerID
}

// GetOrCreateGeneralConversation returns the client's general conversation,
// creating it on first use. Concurrent callers observe the same conversation.
func (s *Service) GetOrCreateGeneralConversation(ctx context.Context, clientID string) (*domain.Conversation, error) {
	if clientID == "" {
		return nil, apperrors.MissingFieldError("clientId")
	}

	client, err := s.getClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	return s.findOrCreate(ctx, client, "", domain.NoCaseNumber)
}

// CreateCaseConversation creates the empty conversation of a new case. It is
// idempotent: an existing conversation for the case is returned unchanged.
func (s *Service) CreateCaseConversation(ctx context.Context, c *domain.Case) (*domain.Conversation, error) {
	if c == nil || c.ID == "" {
		return nil, apperrors.MissingFieldError("caseId")
	}
	if c.ClientID == "" {
		return nil, apperrors.MissingFieldError("clientId")
	}

	client, err := s.getClient(ctx, c.ClientID)
	if err != nil {
		return nil, err
	}

	return s.findOrCreate(ctx, client, c.ID, c.CaseNumber)
}

func (s *Service) findOrCreate(ctx context.Context, client *domain.Client, caseID, caseNumber string) (*domain.Conversation, error) {
	now := s.now()
	candidate := domain.Conversation{
		ID:           s.newID(),
		CaseID:       caseID,
		CaseNumber:   caseNumber,
		ClientID:     client.ID,
		ClientName:   client.Name,
		ClientAvatar: client.Avatar,
		UnreadCount:  0,
		Messages:     []domain.Message{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	key := []docstore.Filter{
		docstore.Eq("clientId", client.ID),
		docstore.Eq("caseId", caseID),
	}

	var conv domain.Conversation
	created, err := s.store.FindOrCreate(ctx, docstore.CollectionConversations, key, candidate.ID, candidate, &conv)
	if err != nil {
		return nil, docstore.AsAppError(err, "Conversation")
	}

	if created {
		kind := "case"
		if caseID == "" {
			kind = "general"
		}
		metrics.PortalConversationsCreatedTotal.WithLabelValues(kind).Inc()
		logger.FromContext(ctx).Info("Conversation created",
			zap.String("conversation_id", conv.ID),
			zap.String("client_id", client.ID),
			zap.String("case_id", caseID))
	}

	return conv.Normalize(), nil
}

// SendMessageInput contains message data
type SendMessageInput struct {
	Ref      domain.ConversationRef
	SenderID string
	Content  string
}

// SendMessageOutput contains the persisted message and the resolved
// conversation. ConversationID replaces a pending ref on the caller side.
type SendMessageOutput struct {
	Message        domain.Message       `json:"message"`
	ConversationID string               `json:"conversationId"`
	Conversation   *domain.Conversation `json:"conversation"`
}

// SendMessage appends a message to the referenced conversation. A pending
// ref is resolved to the client's general conversation first.
func (s *Service) SendMessage(ctx context.Context, input *SendMessageInput) (*SendMessageOutput, error) {
	content := sanitize.Text(input.Content)
	switch {
	case input.SenderID == "":
		return nil, s.sendFailed(apperrors.MissingFieldError("senderId"), "invalid_input")
	case content == "":
		return nil, s.sendFailed(apperrors.InvalidInputError("Message content cannot be empty"), "invalid_input")
	case input.Ref.IsZero():
		return nil, s.sendFailed(apperrors.MissingFieldError("conversationId"), "invalid_input")
	}

	conversationID := input.Ref.ID()
	if input.Ref.IsPending() {
		if input.SenderID != input.Ref.ClientID() && input.SenderID != s.lawyerID {
			return nil, s.sendFailed(apperrors.ForbiddenError("Not a participant of this conversation"), "forbidden")
		}

		general, err := s.GetOrCreateGeneralConversation(ctx, input.Ref.ClientID())
		if err != nil {
			return nil, s.sendFailed(err, "resolve")
		}
		conversationID = general.ID
		metrics.PortalPlaceholdersResolvedTotal.Inc()
	}

	draft := domain.Message{
		ID:        s.newID(),
		SenderID:  input.SenderID,
		Content:   content,
		Timestamp: s.now(),
		Read:      false,
	}

	var conv domain.Conversation
	var sent domain.Message
	err := s.store.Mutate(ctx, docstore.CollectionConversations, conversationID, &conv, func() error {
		if !conv.HasParticipant(input.SenderID, s.lawyerID) {
			return apperrors.ForbiddenError("Not a participant of this conversation")
		}

		sent = draft
		// Keep timestamps non-decreasing when clocks disagree
		if last := conv.LastMessage(); last != nil && sent.Timestamp.Before(last.Timestamp) {
			sent.Timestamp = last.Timestamp
		}
		conv.AppendMessage(sent)
		if s.persistLawyerRead && input.SenderID == s.lawyerID {
			conv.UnreadCount = 0
		}
		return nil
	})
	if err != nil {
		return nil, s.sendFailed(docstore.AsAppError(err, "Conversation"), "store")
	}

	metrics.PortalMessagesSentTotal.WithLabelValues(s.roleOf(input.SenderID)).Inc()
	logger.FromContext(ctx).Debug("Message sent",
		zap.String("conversation_id", conv.ID),
		zap.String("message_id", sent.ID),
		zap.String("sender_id", sent.SenderID))

	s.publishMessage(ctx, &conv, sent)

	view := conv.Normalize()
	if input.SenderID == s.lawyerID {
		// The lawyer is reading the thread they reply in
		view.UnreadCount = 0
	}
	return &SendMessageOutput{
		Message:        sent,
		ConversationID: conv.ID,
		Conversation:   view,
	}, nil
}

// GetConversation retrieves a persisted conversation by id
func (s *Service) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	if conversationID == "" {
		return nil, apperrors.MissingFieldError("conversationId")
	}

	var conv domain.Conversation
	if err := s.store.Get(ctx, docstore.CollectionConversations, conversationID, &conv); err != nil {
		return nil, docstore.AsAppError(err, "Conversation")
	}
	return conv.Normalize(), nil
}

// RefreshClientIdentity rewrites the denormalized client name and avatar on
// every conversation of the client
func (s *Service) RefreshClientIdentity(ctx context.Context, client *domain.Client) error {
	var convs []domain.Conversation
	err := s.store.Query(ctx, docstore.CollectionConversations,
		[]docstore.Filter{docstore.Eq("clientId", client.ID)}, &convs)
	if err != nil {
		return docstore.AsAppError(err, "Conversation")
	}

	for _, conv := range convs {
		if conv.ClientName == client.Name && conv.ClientAvatar == client.Avatar {
			continue
		}
		err := s.store.Update(ctx, docstore.CollectionConversations, conv.ID, map[string]any{
			"clientName":   client.Name,
			"clientAvatar": client.Avatar,
		})
		if err != nil {
			return docstore.AsAppError(err, "Conversation")
		}
	}
	return nil
}

func (s *Service) getClient(ctx context.Context, clientID string) (*domain.Client, error) {
	var client domain.Client
	if err := s.store.Get(ctx, docstore.CollectionClients, clientID, &client); err != nil {
		return nil, docstore.AsAppError(err, "Client")
	}
	return &client, nil
}

func (s *Service) roleOf(userID string) string {
	if userID == s.lawyerID {
		return "lawyer"
	}
	return "client"
}

func (s *Service) sendFailed(err error, reason string) error {
	metrics.PortalMessageSendFailedTotal.WithLabelValues(reason).Inc()
	return err
}

// publishMessage notifies both parties; failures are logged only
func (s *Service) publishMessage(ctx context.Context, conv *domain.Conversation, msg domain.Message) {
	if s.publisher == nil {
		return
	}

	event := domain.InboxEvent{
		Type:           domain.EventMessage,
		ConversationID: conv.ID,
		Message:        &msg,
		At:             s.now(),
	}
	for _, userID := range []string{s.lawyerID, conv.ClientID} {
		if err := s.publisher.Publish(ctx, userID, event); err != nil {
			metrics.PortalEventsPublishedTotal.WithLabelValues("failed").Inc()
			logger.FromContext(ctx).Warn("Failed to publish message event",
				zap.String("conversation_id", conv.ID),
				zap.String("recipient_id", userID),
				zap.Error(err))
			continue
		}
		metrics.PortalEventsPublishedTotal.WithLabelValues("published").Inc()
	}
}
