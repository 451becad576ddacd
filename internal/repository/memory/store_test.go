package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexportal-backend/internal/repository/docstore"
	"lexportal-backend/internal/repository/docstore/storetest"
)

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store { return NewStore() })
}

type record struct {
	ID     string   `json:"id"`
	Owner  string   `json:"owner"`
	Topic  string   `json:"topic"`
	Count  int      `json:"count"`
	Labels []string `json:"labels"`
}

func TestStore_QueryFiltersAndOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "records", "a", record{ID: "a", Owner: "c1", Topic: ""}))
	require.NoError(t, s.Create(ctx, "records", "b", record{ID: "b", Owner: "c2", Topic: ""}))
	require.NoError(t, s.Create(ctx, "records", "c", record{ID: "c", Owner: "c1", Topic: "case-1", Count: 3}))

	var owned []record
	require.NoError(t, s.Query(ctx, "records", []docstore.Filter{docstore.Eq("owner", "c1")}, &owned))
	require.Len(t, owned, 2)
	assert.Equal(t, "a", owned[0].ID)
	assert.Equal(t, "c", owned[1].ID)

	var general []record
	require.NoError(t, s.Query(ctx, "records", []docstore.Filter{docstore.Eq("owner", "c1"), docstore.Eq("topic", "")}, &general))
	require.Len(t, general, 1)
	assert.Equal(t, "a", general[0].ID)

	var counted []record
	require.NoError(t, s.Query(ctx, "records", []docstore.Filter{docstore.Eq("count", 3.0)}, &counted))
	assert.Len(t, counted, 1)

	var none []record
	require.NoError(t, s.Query(ctx, "empty", nil, &none))
	assert.Empty(t, none)
}

func TestStore_UpdateAndSet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.Update(ctx, "records", "r1", map[string]any{"count": 1})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	require.NoError(t, s.Create(ctx, "records", "r1", record{ID: "r1", Owner: "c1", Labels: []string{"x"}}))
	require.NoError(t, s.Update(ctx, "records", "r1", map[string]any{"count": 7}))

	var got record
	require.NoError(t, s.Get(ctx, "records", "r1", &got))
	assert.Equal(t, 7, got.Count)
	assert.Equal(t, "c1", got.Owner)

	require.NoError(t, s.Set(ctx, "records", "r1", map[string]any{"topic": "merged"}, true))
	require.NoError(t, s.Get(ctx, "records", "r1", &got))
	assert.Equal(t, "merged", got.Topic)
	assert.Equal(t, []string{"x"}, got.Labels)

	require.NoError(t, s.Set(ctx, "records", "r1", record{ID: "r1", Owner: "c9"}, false))
	got = record{}
	require.NoError(t, s.Get(ctx, "records", "r1", &got))
	assert.Equal(t, "c9", got.Owner)
	assert.Empty(t, got.Topic)
}

func TestStore_CanceledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got record
	assert.ErrorIs(t, s.Get(ctx, "records", "r1", &got), context.Canceled)
}
