package notification

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lexportal-backend/internal/domain"
	"lexportal-backend/internal/repository/docstore"
	apperrors "lexportal-backend/pkg/errors"
	"lexportal-backend/pkg/logger"
	"lexportal-backend/pkg/metrics"
	"lexportal-backend/pkg/push"
)

// pushTitle heads every device alert
const pushTitle = "Cabinet"

// EventPublisher pushes realtime events to a user's inbox feed
type EventPublisher interface {
	Publish(ctx context.Context, userID string, event domain.InboxEvent) error
}

// Service handles notification business logic
type Service struct {
	store     docstore.Store
	publisher EventPublisher // optional
	pusher    push.Pusher    // optional
	now       func() time.Time
	newID     func() string
}

// NewService creates a new notification service. publisher may be nil.
func NewService(store docstore.Store, publisher EventPublisher) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID:     uuid.NewString,
	}
}

// Notify appends a notification for userID. Delivery is best-effort: a
// failure is logged and counted, never returned, so the state change that
// triggered it stands.
func (s *Service) Notify(ctx context.Context, userID, message string) {
	log := logger.FromContext(ctx)
	if userID == "" || message == "" {
		metrics.PortalNotificationsTotal.WithLabelValues("failed").Inc()
		log.Warn("Dropping notification without recipient or message",
			zap.String("user_id", userID))
		return
	}

	notification := domain.Notification{
		ID:      s.newID(),
		UserID:  userID,
		Message: message,
		Read:    false,
		Date:    s.now(),
	}

	if err := s.store.Create(ctx, docstore.CollectionNotifications, notification.ID, notification); err != nil {
		metrics.PortalNotificationsTotal.WithLabelValues("failed").Inc()
		log.Warn("Failed to create notification",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}
	metrics.PortalNotificationsTotal.WithLabelValues("created").Inc()

	s.publish(ctx, &notification)
	s.push(ctx, &notification)
}

// WithPusher enables device alerts for new notifications
func (s *Service) WithPusher(pusher push.Pusher) *Service {
	s.pusher = pusher
	return s
}

func (s *Service) publish(ctx context.Context, notification *domain.Notification) {
	if s.publisher == nil {
		return
	}
	event := domain.InboxEvent{
		Type:         domain.EventNotification,
		Notification: notification,
		At:           notification.Date,
	}
	if err := s.publisher.Publish(ctx, notification.UserID, event); err != nil {
		metrics.PortalEventsPublishedTotal.WithLabelValues("failed").Inc()
		logger.FromContext(ctx).Warn("Failed to publish notification event",
			zap.String("notification_id", notification.ID),
			zap.Error(err))
		return
	}
	metrics.PortalEventsPublishedTotal.WithLabelValues("published").Inc()
}

func (s *Service) push(ctx context.Context, notification *domain.Notification) {
	if s.pusher == nil {
		return
	}
	if err := s.pusher.Push(ctx, notification.UserID, pushTitle, notification.Message); err != nil {
		metrics.PortalPushesTotal.WithLabelValues("failed").Inc()
		logger.FromContext(ctx).Warn("Failed to push notification",
			zap.String("notification_id", notification.ID),
			zap.Error(err))
		return
	}
	metrics.PortalPushesTotal.WithLabelValues("sent").Inc()
}

// List returns the user's notifications, newest first
func (s *Service) List(ctx context.Context, userID string) (*domain.NotificationListResponse, error) {
	if userID == "" {
		return nil, apperrors.MissingFieldError("userId")
	}

	var notifications []domain.Notification
	err := s.store.Query(ctx, docstore.CollectionNotifications,
		[]docstore.Filter{docstore.Eq("userId", userID)}, &notifications)
	if err != nil {
		return nil, docstore.AsAppError(err, "Notification")
	}

	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].Date.After(notifications[j].Date)
	})

	unread := 0
	for _, n := range notifications {
		if !n.Read {
			unread++
		}
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}

	return &domain.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unread,
		TotalCount:    len(notifications),
	}, nil
}

// MarkAsRead marks one of the user's notifications as read. Notifications
// of other users are reported as not found.
func (s *Service) MarkAsRead(ctx context.Context, notificationID, userID string) error {
	var notification domain.Notification
	if err := s.store.Get(ctx, docstore.CollectionNotifications, notificationID, &notification); err != nil {
		return docstore.AsAppError(err, "Notification")
	}
	if notification.UserID != userID {
		return apperrors.NotFoundError("Notification")
	}
	if notification.Read {
		return nil
	}

	err := s.store.Update(ctx, docstore.CollectionNotifications, notificationID, map[string]any{"read": true})
	if err != nil {
		return docstore.AsAppError(err, "Notification")
	}
	return nil
}

// MarkAllAsRead marks every unread notification of the user as read and
// returns how many changed
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	var unread []domain.Notification
	err := s.store.Query(ctx, docstore.CollectionNotifications, []docstore.Filter{
		docstore.Eq("userId", userID),
		docstore.Eq("read", false),
	}, &unread)
	if err != nil {
		return 0, docstore.AsAppError(err, "Notification")
	}

	for i, n := range unread {
		if err := s.store.Update(ctx, docstore.CollectionNotifications, n.ID, map[string]any{"read": true}); err != nil {
			return i, docstore.AsAppError(err, "Notification")
		}
	}
	return len(unread), nil
}
