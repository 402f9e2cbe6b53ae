// Package notifications exposes stored notifications to users and handles
// best-effort live delivery on top of the durable rows.
package notifications

import (
	"context"

	"github.com/swiftel/request-handler/internal/app/domain/notification"
	"github.com/swiftel/request-handler/internal/app/storage"
	apperrors "github.com/swiftel/request-handler/internal/errors"
	"github.com/swiftel/request-handler/pkg/logger"
)

// Publisher pushes a notification to a user's live channels. It reports
// whether at least one channel accepted the message.
type Publisher interface {
	Publish(userID string, n notification.Notification) bool
}

// Service serves a user's notification feed.
type Service struct {
	store storage.NotificationStore
	log   *logger.Logger
}

// New constructs a notification service.
func New(store storage.NotificationStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notifications")
	}
	return &Service{store: store, log: log}
}

// List returns userID's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]notification.Notification, error) {
	return s.store.ListNotifications(ctx, userID)
}

// MarkRead marks one of the caller's notifications as read. Reading another
// user's notification is unauthorized.
func (s *Service) MarkRead(ctx context.Context, userID, id string) (notification.Notification, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return notification.Notification{}, err
	}
	if n.UserID != userID {
		return notification.Notification{}, apperrors.Unauthorized("notification belongs to another user")
	}
	return s.store.MarkNotificationRead(ctx, id)
}
