package mongo

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/repository/docstore"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(mongo.ErrNoDocuments), docstore.ErrNotFound)
	assert.ErrorIs(t, translate(fmt.Errorf("find: %w", mongo.ErrNoDocuments)), docstore.ErrNotFound)

	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, translate(dup), docstore.ErrAlreadyExists)

	other := errors.New("server selection timeout")
	assert.Equal(t, other, translate(other))
}

func TestToFilter_PreservesOrder(t *testing.T) {
	filter := toFilter([]docstore.Filter{docstore.Eq("clientId", "c1"), docstore.Eq("caseId", "")})

	assert.Equal(t, bson.D{{Key: "clientId", Value: "c1"}, {Key: "caseId", Value: ""}}, filter)
}

func TestToDocument_UsesBSONTags(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	conv := domain.Conversation{
		ID:          "conv-1",
		ClientID:    "c1",
		CaseNumber:  domain.NoCaseNumber,
		UnreadCount: 2,
		Messages:    []domain.Message{{ID: "m1", SenderID: "c1", Content: "Bonjour", Timestamp: now}},
		Placeholder: true,
	}

	doc, err := toDocument(conv)
	require.NoError(t, err)

	assert.Equal(t, "conv-1", doc["_id"])
	assert.Equal(t, "c1", doc["clientId"])
	assert.Equal(t, "", doc["caseId"])
	assert.NotContains(t, doc, "placeholder")
	assert.NotContains(t, doc, "Placeholder")

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var back domain.Conversation
	require.NoError(t, bson.Unmarshal(raw, &back))
	assert.Equal(t, "conv-1", back.ID)
	require.Len(t, back.Messages, 1)
	assert.Equal(t, "Bonjour", back.Messages[0].Content)
	assert.True(t, now.Equal(back.Messages[0].Timestamp))
}

func TestEnsureSlice(t *testing.T) {
	var convs []domain.Conversation
	ensureSlice(&convs)
	assert.NotNil(t, convs)
	assert.Empty(t, convs)
}
