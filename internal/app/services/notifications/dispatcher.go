package notifications

import (
	"context"

	"github.com/swiftel/request-handler/internal/app/domain/notification"
	"github.com/swiftel/request-handler/internal/app/metrics"
	"github.com/swiftel/request-handler/internal/app/storage"
	"github.com/swiftel/request-handler/pkg/logger"
)

// Dispatcher performs post-commit live delivery. The notification row has
// already committed when Dispatch runs, so a failed push loses nothing: the
// relay retries it and the feed endpoint serves it regardless.
type Dispatcher struct {
	store storage.NotificationStore
	pub   Publisher
	log   *logger.Logger
}

// NewDispatcher constructs a dispatcher publishing through pub.
func NewDispatcher(store storage.NotificationStore, pub Publisher, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewDefault("notification-dispatcher")
	}
	return &Dispatcher{store: store, pub: pub, log: log}
}

// Dispatch attempts a live push and marks the row delivered on success.
func (d *Dispatcher) Dispatch(ctx context.Context, n notification.Notification) {
	delivered := d.pub != nil && d.pub.Publish(n.UserID, n)
	metrics.NotificationDispatched(delivered)
	if !delivered {
		return
	}
	if err := d.store.MarkNotificationDelivered(ctx, n.ID); err != nil {
		d.log.WithError(err).WithField("notification_id", n.ID).Warn("mark notification delivered")
	}
}
