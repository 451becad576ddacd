package conversation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/repository/docstore"
	apperrors "lexportal-backend/pkg/errors"
	"lexportal-backend/pkg/logger"
)

// errNotClient aborts the read reset without writing
var errNotClient = errors.New("acting user is not the conversation's client")

// OpenConversation returns the conversation as actingUserID sees it.
//
// The lawyer's view always comes back with unreadCount zeroed; the stored
// counter is only reset when PersistLawyerRead is enabled. A pending ref
// yields the client's general conversation if one exists by now, and a
// placeholder otherwise. Nothing is created.
func (s *Service) OpenConversation(ctx context.Context, ref domain.ConversationRef, actingUserID string) (*domain.Conversation, error) {
	if ref.IsZero() {
		return nil, apperrors.MissingFieldError("conversationId")
	}
	if actingUserID == "" {
		return nil, apperrors.UnauthorizedError("Unknown user")
	}

	var conv *domain.Conversation
	if ref.IsPending() {
		if actingUserID != ref.ClientID() && actingUserID != s.lawyerID {
			return nil, apperrors.ForbiddenError("Not a participant of this conversation")
		}

		var err error
		if conv, err = s.findGeneral(ctx, ref.ClientID()); err != nil {
			return nil, err
		}
		if conv == nil {
			client, err := s.getClient(ctx, ref.ClientID())
			if err != nil {
				return nil, err
			}
			placeholder := domain.NewPlaceholderConversation(client)
			return &placeholder, nil
		}
	} else {
		var err error
		if conv, err = s.GetConversation(ctx, ref.ID()); err != nil {
			return nil, err
		}
		if !conv.HasParticipant(actingUserID, s.lawyerID) {
			return nil, apperrors.ForbiddenError("Not a participant of this conversation")
		}
	}

	if actingUserID == s.lawyerID {
		s.resetLawyerUnread(ctx, conv)
	}
	return conv, nil
}

// resetLawyerUnread zeroes the counter in the returned view and, when
// configured, in the store. A failed store reset only costs a stale badge.
func (s *Service) resetLawyerUnread(ctx context.Context, conv *domain.Conversation) {
	if s.persistLawyerRead && conv.UnreadCount > 0 {
		err := s.store.Update(ctx, docstore.CollectionConversations, conv.ID, map[string]any{"unreadCount": 0})
		if err != nil {
			logger.FromContext(ctx).Warn("Failed to persist lawyer read reset",
				zap.String("conversation_id", conv.ID),
				zap.Error(err))
		}
	}
	conv.UnreadCount = 0
}

// MarkConversationAsRead resets the unread counter only when actingUserID is
// the conversation's client. Any other caller gets false and no write.
func (s *Service) MarkConversationAsRead(ctx context.Context, ref domain.ConversationRef, actingUserID string) (bool, error) {
	if ref.IsZero() {
		return false, apperrors.MissingFieldError("conversationId")
	}

	conversationID := ref.ID()
	if ref.IsPending() {
		general, err := s.findGeneral(ctx, ref.ClientID())
		if err != nil {
			return false, err
		}
		if general == nil {
			return false, nil
		}
		conversationID = general.ID
	}

	var conv domain.Conversation
	err := s.store.Mutate(ctx, docstore.CollectionConversations, conversationID, &conv, func() error {
		if actingUserID == "" || actingUserID != conv.ClientID {
			return errNotClient
		}
		conv.UnreadCount = 0
		return nil
	})
	if errors.Is(err, errNotClient) {
		return false, nil
	}
	if err != nil {
		return false, docstore.AsAppError(err, "Conversation")
	}
	return true, nil
}

// findGeneral returns the client's general conversation, or nil if none was
// persisted yet
func (s *Service) findGeneral(ctx context.Context, clientID string) (*domain.Conversation, error) {
	var convs []domain.Conversation
	err := s.store.Query(ctx, docstore.CollectionConversations, []docstore.Filter{
		docstore.Eq("clientId", clientID),
		docstore.Eq("caseId", ""),
	}, &convs)
	if err != nil {
		return nil, docstore.AsAppError(err, "Conversation")
	}
	if len(convs) == 0 {
		return nil, nil
	}
	return convs[0].Normalize(), nil
}
