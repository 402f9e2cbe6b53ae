package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/swiftel/request-handler/internal/app/domain/notification"
	"github.com/swiftel/request-handler/internal/app/storage/memory"
)

// stubPublisher accepts pushes for a fixed set of connected users.
type stubPublisher struct {
	mu        sync.Mutex
	connected map[string]bool
	published []notification.Notification
}

func (p *stubPublisher) Publish(userID string, n notification.Notification) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected[userID] {
		return false
	}
	p.published = append(p.published, n)
	return true
}

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func TestDispatchMarksDelivered(t *testing.T) {
	store := memory.New()
	pub := &stubPublisher{connected: map[string]bool{"user-1": true}}
	d := NewDispatcher(store, pub, nil)
	ctx := context.Background()

	n := seedNotification(t, store, "user-1", "hello")
	d.Dispatch(ctx, n)

	if pub.count() != 1 {
		t.Fatalf("published %d messages, want 1", pub.count())
	}
	got, err := store.GetNotification(ctx, n.ID)
	if err != nil {
		t.Fatalf("get notification: %v", err)
	}
	if got.DeliveredAt == nil {
		t.Fatalf("successful push must mark the row delivered")
	}
}

func TestDispatchToleratesOfflineUser(t *testing.T) {
	store := memory.New()
	pub := &stubPublisher{connected: map[string]bool{}}
	d := NewDispatcher(store, pub, nil)
	ctx := context.Background()

	n := seedNotification(t, store, "user-1", "hello")
	d.Dispatch(ctx, n)

	got, err := store.GetNotification(ctx, n.ID)
	if err != nil {
		t.Fatalf("get notification: %v", err)
	}
	if got.DeliveredAt != nil {
		t.Fatalf("a failed push must leave the row undelivered for the relay")
	}
}

func TestRelayRedeliversAfterReconnect(t *testing.T) {
	store := memory.New()
	pub := &stubPublisher{connected: map[string]bool{}}
	ctx := context.Background()

	n := seedNotification(t, store, "user-1", "missed you")
	NewDispatcher(store, pub, nil).Dispatch(ctx, n)

	relay := NewRelay(store, pub, nil).WithInterval(5 * time.Millisecond)
	if err := relay.Start(ctx); err != nil {
		t.Fatalf("start relay: %v", err)
	}
	defer relay.Stop(ctx)

	// The user comes online; the next sweep should deliver the backlog.
	pub.mu.Lock()
	pub.connected["user-1"] = true
	pub.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pub.count() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if pub.count() != 1 {
		t.Fatalf("relay published %d messages, want 1", pub.count())
	}

	got, err := store.GetNotification(ctx, n.ID)
	if err != nil {
		t.Fatalf("get notification: %v", err)
	}
	if got.DeliveredAt == nil {
		t.Fatalf("relayed notification must be marked delivered")
	}

	pending, err := store.ListUndeliveredNotifications(ctx)
	if err != nil {
		t.Fatalf("list undelivered: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("%d notifications still undelivered, want 0", len(pending))
	}
}

func TestRelayStopIsIdempotent(t *testing.T) {
	relay := NewRelay(memory.New(), &stubPublisher{}, nil)
	ctx := context.Background()

	if err := relay.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := relay.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if err := relay.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := relay.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
