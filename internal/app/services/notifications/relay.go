package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/swiftel/request-handler/internal/app/storage"
	"github.com/swiftel/request-handler/internal/app/system"
	"github.com/swiftel/request-handler/pkg/logger"
)

const defaultRelayInterval = 15 * time.Second

// Relay periodically sweeps undelivered notifications and retries their live
// push, covering users who connected after the original dispatch attempt.
type Relay struct {
	store    storage.NotificationStore
	pub      Publisher
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*Relay)(nil)

// NewRelay constructs a relay with the default sweep interval.
func NewRelay(store storage.NotificationStore, pub Publisher, log *logger.Logger) *Relay {
	if log == nil {
		log = logger.NewDefault("notification-relay")
	}
	return &Relay{store: store, pub: pub, interval: defaultRelayInterval, log: log}
}

// WithInterval overrides the sweep interval. Call before Start.
func (r *Relay) WithInterval(interval time.Duration) *Relay {
	if interval > 0 {
		r.interval = interval
	}
	return r
}

func (r *Relay) Name() string { return "notification-relay" }

// Start launches the sweep loop.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.sweep(runCtx)
			}
		}
	}()
	return nil
}

// Stop halts the sweep loop and waits for it to exit.
func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.cancel()
	r.running = false
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Relay) sweep(ctx context.Context) {
	pending, err := r.store.ListUndeliveredNotifications(ctx)
	if err != nil {
		r.log.WithError(err).Warn("list undelivered notifications")
		return
	}
	for _, n := range pending {
		if r.pub == nil || !r.pub.Publish(n.UserID, n) {
			continue
		}
		if err := r.store.MarkNotificationDelivered(ctx, n.ID); err != nil {
			r.log.WithError(err).WithField("notification_id", n.ID).Warn("mark notification delivered")
		}
	}
}
