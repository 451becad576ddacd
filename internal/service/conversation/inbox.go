package conversation

import (
	"context"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/repository/docstore"
	apperrors "lexportal-backend/pkg/errors"
)

// GetConversationsForLawyer builds the lawyer inbox: one entry per roster
// client, in roster order, using the client's persisted conversations (most
// recent first) or a placeholder when none exists yet. Conversations of
// clients missing from the roster are appended last.
func (s *Service) GetConversationsForLawyer(ctx context.Context) ([]domain.Conversation, error) {
	var clients []domain.Client
	if err := s.store.Query(ctx, docstore.CollectionClients, nil, &clients); err != nil {
		return nil, docstore.AsAppError(err, "Client")
	}
	domain.SortClients(clients)

	var convs []domain.Conversation
	if err := s.store.Query(ctx, docstore.CollectionConversations, nil, &convs); err != nil {
		return nil, docstore.AsAppError(err, "Conversation")
	}
	domain.SortByRecency(convs)

	byClient := make(map[string][]domain.Conversation, len(clients))
	for _, conv := range convs {
		byClient[conv.ClientID] = append(byClient[conv.ClientID], *conv.Normalize())
	}

	inbox := make([]domain.Conversation, 0, len(clients)+len(convs))
	listed := make(map[string]bool, len(clients))
	for i := range clients {
		client := &clients[i]
		listed[client.ID] = true

		if owned := byClient[client.ID]; len(owned) > 0 {
			inbox = append(inbox, owned...)
			continue
		}
		inbox = append(inbox, domain.NewPlaceholderConversation(client))
	}

	for _, conv := range convs {
		if !listed[conv.ClientID] {
			inbox = append(inbox, *conv.Normalize())
		}
	}

	return inbox, nil
}

// GetConversationsForClient returns the client's persisted conversations,
// most recent first
func (s *Service) GetConversationsForClient(ctx context.Context, clientID string) ([]domain.Conversation, error) {
	if clientID == "" {
		return nil, apperrors.MissingFieldError("clientId")
	}
	if _, err := s.getClient(ctx, clientID); err != nil {
		return nil, err
	}

	var convs []domain.Conversation
	err := s.store.Query(ctx, docstore.CollectionConversations,
		[]docstore.Filter{docstore.Eq("clientId", clientID)}, &convs)
	if err != nil {
		return nil, docstore.AsAppError(err, "Conversation")
	}
	domain.SortByRecency(convs)

	for i := range convs {
		convs[i].Normalize()
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	return convs, nil
}
