package firestore

import (
	"errors"
	"fmt"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/repository/docstore"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(status.Error(codes.NotFound, "missing")), docstore.ErrNotFound)
	assert.ErrorIs(t, translate(status.Error(codes.AlreadyExists, "taken")), docstore.ErrAlreadyExists)
	assert.ErrorIs(t, translate(status.Error(codes.Aborted, "contention")), docstore.ErrContention)

	other := errors.New("unavailable")
	assert.Equal(t, other, translate(other))

	wrapped := fmt.Errorf("rpc: %w", status.Error(codes.NotFound, "missing"))
	assert.ErrorIs(t, translate(wrapped), docstore.ErrNotFound)
}

func TestToUpdates_SortedPaths(t *testing.T) {
	updates := toUpdates(map[string]any{"unreadCount": 0, "clientName": "Camille", "clientAvatar": ""})

	assert.Equal(t, []firestore.Update{
		{Path: "clientAvatar", Value: ""},
		{Path: "clientName", Value: "Camille"},
		{Path: "unreadCount", Value: 0},
	}, updates)
}

func TestResetValue(t *testing.T) {
	conv := &domain.Conversation{ID: "c1", UnreadCount: 4, Messages: []domain.Message{{ID: "m1"}}}

	resetValue(conv)

	assert.Equal(t, domain.Conversation{}, *conv)
}

func TestDecodeAll_RejectsNonSlice(t *testing.T) {
	var conv domain.Conversation
	assert.Error(t, decodeAll(nil, &conv))

	var convs []domain.Conversation
	assert.NoError(t, decodeAll(nil, &convs))
	assert.NotNil(t, convs)
	assert.Empty(t, convs)
}
