package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/swiftel/request-handler/internal/app/domain/notification"
	"github.com/swiftel/request-handler/internal/app/domain/user"
	"github.com/swiftel/request-handler/internal/auth"
)

func dialHub(t *testing.T, srv *httptest.Server, issuer *auth.Issuer, u user.User) *websocket.Conn {
	t.Helper()
	token, err := issuer.Issue(u, false)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForConnected(t *testing.T, hub *Hub, userID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Connected(userID) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("user %s never registered on the hub", userID)
}

func TestHubPublishesToConnectedUser(t *testing.T) {
	issuer := auth.NewIssuer("test-secret", time.Hour, 0)
	hub := New(issuer, nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dialHub(t, srv, issuer, user.User{ID: "user-1", Name: "Pat"})
	waitForConnected(t, hub, "user-1")

	sent := notification.Notification{ID: "n-1", UserID: "user-1", Message: "your request was approved"}
	if !hub.Publish("user-1", sent) {
		t.Fatalf("publish to a connected user reported failure")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got notification.Notification
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.ID != sent.ID || got.Message != sent.Message {
		t.Fatalf("received %+v, want %+v", got, sent)
	}
}

func TestHubPublishToOfflineUser(t *testing.T) {
	hub := New(auth.NewIssuer("test-secret", time.Hour, 0), nil, nil)
	if hub.Publish("nobody", notification.Notification{ID: "n-1"}) {
		t.Fatalf("publish to an offline user reported success")
	}
}

func TestHubRejectsBadToken(t *testing.T) {
	hub := New(auth.NewIssuer("test-secret", time.Hour, 0), nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("dial with a bad token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("handshake response = %+v, want 401", resp)
	}
}

func TestHubFansOutToMultipleConnections(t *testing.T) {
	issuer := auth.NewIssuer("test-secret", time.Hour, 0)
	hub := New(issuer, nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	u := user.User{ID: "user-1", Name: "Pat"}
	first := dialHub(t, srv, issuer, u)
	second := dialHub(t, srv, issuer, u)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.conns["user-1"])
		hub.mu.RUnlock()
		if n == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	sent := notification.Notification{ID: "n-1", UserID: "user-1", Message: "hello"}
	if !hub.Publish("user-1", sent) {
		t.Fatalf("publish reported failure")
	}

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got notification.Notification
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("read: %v", err)
		}
		if got.ID != sent.ID {
			t.Fatalf("received %q, want %q", got.ID, sent.ID)
		}
	}
}

// Publishers run on request goroutines and the relay ticker at once, so
// writes to a single connection must be serialized.
func TestHubConcurrentPublish(t *testing.T) {
	issuer := auth.NewIssuer("test-secret", time.Hour, 0)
	hub := New(issuer, nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dialHub(t, srv, issuer, user.User{ID: "user-1", Name: "Pat"})
	waitForConnected(t, hub, "user-1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Publish("user-1", notification.Notification{ID: "n-1", UserID: "user-1", Message: "update"})
			}
		}()
	}
	wg.Wait()

	if !hub.Connected("user-1") {
		t.Fatalf("connection dropped during concurrent publishing")
	}

	conn.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("reader did not stop after close")
	}
}
