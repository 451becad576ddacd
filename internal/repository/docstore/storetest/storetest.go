// Package storetest holds the behaviour every docstore.Store backend must
// share. Backends run it from their own tests:
//
//	storetest.Run(t, func(t *testing.T) docstore.Store { return NewStore() })
//
// Every case namespaces its ids, so the suite can run against a shared
// database without cleanup between runs.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/repository/docstore"
)

// Concurrency of the racing cases. Optimistic backends may give up with
// ErrContention; that is allowed, losing an update is not.
const racers = 8

// Run executes the contract against the store returned by open
func Run(t *testing.T, open func(t *testing.T) docstore.Store) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s docstore.Store)
	}{
		{"CreateGet", testCreateGet},
		{"QueryFilters", testQueryFilters},
		{"UpdateAndMerge", testUpdateAndMerge},
		{"FindOrCreate", testFindOrCreate},
		{"FindOrCreateConcurrent", testFindOrCreateConcurrent},
		{"MutateConcurrent", testMutateConcurrent},
		{"MutateAbortsOnError", testMutateAbortsOnError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

func namespace() string {
	return uuid.NewString()[:8] + "-"
}

func notification(id, userID string, read bool) domain.Notification {
	return domain.Notification{
		ID:      id,
		UserID:  userID,
		Message: "notice " + id,
		Read:    read,
		Date:    time.Now().UTC().Truncate(time.Millisecond),
	}
}

func conversation(id, clientID, caseID string) domain.Conversation {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return domain.Conversation{
		ID:         id,
		ClientID:   clientID,
		CaseID:     caseID,
		CaseNumber: domain.NoCaseNumber,
		ClientName: "Camille Martin",
		Messages:   []domain.Message{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func conversationKey(clientID, caseID string) []docstore.Filter {
	return []docstore.Filter{docstore.Eq("clientId", clientID), docstore.Eq("caseId", caseID)}
}

func testCreateGet(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ns := namespace()

	require.NoError(t, s.Create(ctx, docstore.CollectionNotifications, ns+"n1", notification(ns+"n1", ns+"u1", false)))

	var got domain.Notification
	require.NoError(t, s.Get(ctx, docstore.CollectionNotifications, ns+"n1", &got))
	assert.Equal(t, ns+"u1", got.UserID)
	assert.False(t, got.Read)

	err := s.Create(ctx, docstore.CollectionNotifications, ns+"n1", notification(ns+"n1", ns+"u2", false))
	assert.ErrorIs(t, err, docstore.ErrAlreadyExists)

	err = s.Get(ctx, docstore.CollectionNotifications, ns+"missing", &got)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testQueryFilters(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ns := namespace()

	for _, n := range []domain.Notification{
		notification(ns+"a", ns+"u1", false),
		notification(ns+"b", ns+"u1", true),
		notification(ns+"c", ns+"u1", false),
		notification(ns+"d", ns+"u2", false),
	} {
		require.NoError(t, s.Create(ctx, docstore.CollectionNotifications, n.ID, n))
	}

	var unread []domain.Notification
	require.NoError(t, s.Query(ctx, docstore.CollectionNotifications, []docstore.Filter{
		docstore.Eq("userId", ns+"u1"),
		docstore.Eq("read", false),
	}, &unread))
	ids := make([]string, 0, len(unread))
	for _, n := range unread {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []string{ns + "a", ns + "c"}, ids)

	var none []domain.Notification
	require.NoError(t, s.Query(ctx, docstore.CollectionNotifications, []docstore.Filter{
		docstore.Eq("userId", ns+"nobody"),
	}, &none))
	assert.Empty(t, none)
}

func testUpdateAndMerge(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ns := namespace()

	err := s.Update(ctx, docstore.CollectionNotifications, ns+"missing", map[string]any{"read": true})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	require.NoError(t, s.Create(ctx, docstore.CollectionNotifications, ns+"n1", notification(ns+"n1", ns+"u1", false)))
	require.NoError(t, s.Update(ctx, docstore.CollectionNotifications, ns+"n1", map[string]any{"read": true}))

	var got domain.Notification
	require.NoError(t, s.Get(ctx, docstore.CollectionNotifications, ns+"n1", &got))
	assert.True(t, got.Read)
	assert.Equal(t, ns+"u1", got.UserID)

	require.NoError(t, s.Set(ctx, docstore.CollectionNotifications, ns+"n1", map[string]any{"message": "merged"}, true))
	got = domain.Notification{}
	require.NoError(t, s.Get(ctx, docstore.CollectionNotifications, ns+"n1", &got))
	assert.Equal(t, "merged", got.Message)
	assert.Equal(t, ns+"u1", got.UserID)
	assert.True(t, got.Read)
}

func testFindOrCreate(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ns := namespace()
	clientID := ns + "c1"

	var general domain.Conversation
	created, err := s.FindOrCreate(ctx, docstore.CollectionConversations, conversationKey(clientID, ""),
		ns+"g1", conversation(ns+"g1", clientID, ""), &general)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, ns+"g1", general.ID)

	var again domain.Conversation
	created, err = s.FindOrCreate(ctx, docstore.CollectionConversations, conversationKey(clientID, ""),
		ns+"g2", conversation(ns+"g2", clientID, ""), &again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, ns+"g1", again.ID)

	// A case thread of the same client is a different key
	var caseThread domain.Conversation
	created, err = s.FindOrCreate(ctx, docstore.CollectionConversations, conversationKey(clientID, ns+"case-1"),
		ns+"k1", conversation(ns+"k1", clientID, ns+"case-1"), &caseThread)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, ns+"k1", caseThread.ID)

	err = s.Get(ctx, docstore.CollectionConversations, ns+"g2", &again)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testFindOrCreateConcurrent(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ns := namespace()
	clientID := ns + "c1"
	key := conversationKey(clientID, "")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		seen    = map[string]bool{}
		creates int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := ns + uuid.NewString()[:8]
			var got domain.Conversation
			created, err := s.FindOrCreate(ctx, docstore.CollectionConversations, key, id, conversation(id, clientID, ""), &got)
			if errors.Is(err, docstore.ErrContention) {
				return
			}
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			seen[got.ID] = true
			if created {
				creates++
			}
		}()
	}
	wg.Wait()

	var all []domain.Conversation
	require.NoError(t, s.Query(ctx, docstore.CollectionConversations, key, &all))
	require.Len(t, all, 1)
	assert.Equal(t, map[string]bool{all[0].ID: true}, seen)
	assert.Equal(t, 1, creates)
}

func testMutateConcurrent(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ns := namespace()
	clientID := ns + "c1"
	require.NoError(t, s.Create(ctx, docstore.CollectionConversations, ns+"g1", conversation(ns+"g1", clientID, "")))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var conv domain.Conversation
			err := s.Mutate(ctx, docstore.CollectionConversations, ns+"g1", &conv, func() error {
				conv.AppendMessage(domain.Message{
					ID:        uuid.NewString(),
					SenderID:  clientID,
					Content:   "message",
					Timestamp: time.Now().UTC().Truncate(time.Millisecond),
				})
				return nil
			})
			if errors.Is(err, docstore.ErrContention) {
				return
			}
			if assert.NoError(t, err) {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	var stored domain.Conversation
	require.NoError(t, s.Get(ctx, docstore.CollectionConversations, ns+"g1", &stored))
	require.Positive(t, succeeded)
	assert.Len(t, stored.Messages, succeeded)
	assert.Equal(t, succeeded, stored.UnreadCount)
}

func testMutateAbortsOnError(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ns := namespace()
	require.NoError(t, s.Create(ctx, docstore.CollectionConversations, ns+"g1", conversation(ns+"g1", ns+"c1", "")))

	boom := errors.New("boom")
	var conv domain.Conversation
	err := s.Mutate(ctx, docstore.CollectionConversations, ns+"g1", &conv, func() error {
		conv.UnreadCount = 99
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var stored domain.Conversation
	require.NoError(t, s.Get(ctx, docstore.CollectionConversations, ns+"g1", &stored))
	assert.Equal(t, 0, stored.UnreadCount)

	err = s.Mutate(ctx, docstore.CollectionConversations, ns+"missing", &conv, func() error { return nil })
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}
