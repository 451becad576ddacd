package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/repository/docstore"
	"lexportal-backend/internal/repository/memory"
	apperrors "lexportal-backend/pkg/errors"
)

// MockPublisher is a mock implementation of EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, userID string, event domain.InboxEvent) error {
	args := m.Called(ctx, userID, event)
	return args.Error(0)
}

// MockPusher is a mock implementation of push.Pusher
type MockPusher struct {
	mock.Mock
}

func (m *MockPusher) Push(ctx context.Context, userID, title, body string) error {
	args := m.Called(ctx, userID, title, body)
	return args.Error(0)
}

// brokenStore fails every write
type brokenStore struct {
	*memory.Store
}

func (s *brokenStore) Create(ctx context.Context, collection, id string, data any) error {
	return errors.New("store unavailable")
}

func newTestService(store docstore.Store, publisher EventPublisher) *Service {
	svc := NewService(store, publisher)
	current := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
	return svc
}

func TestNotify_CreatesUnreadNotification(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	svc.Notify(ctx, "c1", "Votre rendez-vous est confirmé")

	list, err := svc.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list.Notifications, 1)
	n := list.Notifications[0]
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "c1", n.UserID)
	assert.Equal(t, "Votre rendez-vous est confirmé", n.Message)
	assert.False(t, n.Read)
	assert.False(t, n.Date.IsZero())
	assert.Equal(t, 1, list.UnreadCount)
}

func TestNotify_StoreFailureIsSwallowed(t *testing.T) {
	publisher := new(MockPublisher)
	svc := newTestService(&brokenStore{Store: memory.NewStore()}, publisher)

	assert.NotPanics(t, func() {
		svc.Notify(context.Background(), "c1", "Nouvelle facture")
	})
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotify_IgnoresEmptyInput(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	svc.Notify(ctx, "", "orphan")
	svc.Notify(ctx, "c1", "")

	var all []domain.Notification
	require.NoError(t, store.Query(ctx, docstore.CollectionNotifications, nil, &all))
	assert.Empty(t, all)
}

func TestNotify_PublishesEvent(t *testing.T) {
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, "lawyer-1", mock.MatchedBy(func(e domain.InboxEvent) bool {
		return e.Type == domain.EventNotification && e.Notification != nil && e.Notification.Message == "Paiement reçu"
	})).Return(errors.New("redis down"))

	svc := newTestService(memory.NewStore(), publisher)
	svc.Notify(context.Background(), "lawyer-1", "Paiement reçu")

	publisher.AssertExpectations(t)
	list, err := svc.List(context.Background(), "lawyer-1")
	require.NoError(t, err)
	assert.Len(t, list.Notifications, 1)
}

func TestNotify_PushesAfterPublishFailure(t *testing.T) {
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, "c1", mock.Anything).Return(errors.New("redis down"))
	pusher := new(MockPusher)
	pusher.On("Push", mock.Anything, "c1", pushTitle, "Nouvelle facture").Return(nil)

	svc := newTestService(memory.NewStore(), publisher).WithPusher(pusher)
	svc.Notify(context.Background(), "c1", "Nouvelle facture")

	publisher.AssertExpectations(t)
	pusher.AssertExpectations(t)
}

func TestNotify_PushFailureIsSwallowed(t *testing.T) {
	pusher := new(MockPusher)
	pusher.On("Push", mock.Anything, "c1", pushTitle, mock.Anything).Return(errors.New("fcm unavailable"))

	svc := newTestService(memory.NewStore(), nil).WithPusher(pusher)
	svc.Notify(context.Background(), "c1", "Rendez-vous confirmé")

	list, err := svc.List(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, list.Notifications, 1)
	pusher.AssertExpectations(t)
}

func TestNotify_NoPushWhenStoreFails(t *testing.T) {
	pusher := new(MockPusher)
	svc := newTestService(&brokenStore{Store: memory.NewStore()}, nil).WithPusher(pusher)

	svc.Notify(context.Background(), "c1", "Nouvelle facture")

	pusher.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestList_NewestFirstAndScopedToUser(t *testing.T) {
	svc := newTestService(memory.NewStore(), nil)
	ctx := context.Background()

	svc.Notify(ctx, "c1", "first")
	svc.Notify(ctx, "c2", "someone else")
	svc.Notify(ctx, "c1", "second")

	list, err := svc.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list.Notifications, 2)
	assert.Equal(t, "second", list.Notifications[0].Message)
	assert.Equal(t, "first", list.Notifications[1].Message)
	assert.Equal(t, 2, list.TotalCount)

	empty, err := svc.List(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty.Notifications)
	assert.Equal(t, 0, empty.TotalCount)
}

func TestMarkAsRead(t *testing.T) {
	svc := newTestService(memory.NewStore(), nil)
	ctx := context.Background()
	svc.Notify(ctx, "c1", "Dossier clôturé")
	list, err := svc.List(ctx, "c1")
	require.NoError(t, err)
	id := list.Notifications[0].ID

	err = svc.MarkAsRead(ctx, id, "c2")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))

	require.NoError(t, svc.MarkAsRead(ctx, id, "c1"))
	require.NoError(t, svc.MarkAsRead(ctx, id, "c1"))

	list, err = svc.List(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, list.Notifications[0].Read)
	assert.Equal(t, 0, list.UnreadCount)

	err = svc.MarkAsRead(ctx, "missing", "c1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestMarkAllAsRead(t *testing.T) {
	svc := newTestService(memory.NewStore(), nil)
	ctx := context.Background()
	svc.Notify(ctx, "c1", "one")
	svc.Notify(ctx, "c1", "two")
	svc.Notify(ctx, "c2", "other")

	count, err := svc.MarkAllAsRead(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = svc.MarkAllAsRead(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	other, err := svc.List(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, 1, other.UnreadCount)
}
