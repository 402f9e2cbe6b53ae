// Package realtime maintains per-user websocket connections for live
// notification delivery.
package realtime

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/swiftel/request-handler/internal/app/domain/notification"
	"github.com/swiftel/request-handler/internal/auth"
	"github.com/swiftel/request-handler/pkg/logger"
)

// TokenVerifier validates a session token presented on connect.
type TokenVerifier interface {
	Parse(token string) (*auth.Claims, error)
}

// client wraps one websocket connection. The websocket library allows only
// one concurrent writer per connection, so every write must hold mu.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub tracks live websocket connections keyed by user id. A user may hold
// several connections (multiple tabs); Publish fans out to all of them.
type Hub struct {
	verifier TokenVerifier
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu    sync.RWMutex
	conns map[string]map[*client]struct{}
}

// New creates a hub. checkOrigin decides which websocket origins to accept;
// nil allows all (the CORS middleware governs the REST surface separately).
func New(verifier TokenVerifier, checkOrigin func(r *http.Request) bool, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("realtime")
	}
	return &Hub{
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log: log,
	}
}

// ServeHTTP upgrades the connection after validating the token passed as a
// query parameter, then parks the connection until the client closes it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	claims, err := h.verifier.Parse(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{conn: conn}
	h.register(claims.UserID, c)
	go h.readLoop(claims.UserID, c)
}

// Publish sends n to every live connection for userID and reports whether at
// least one write succeeded. Publish is safe to call from any goroutine;
// writes to each connection are serialized through the client lock.
func (h *Hub) Publish(userID string, n notification.Notification) bool {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	delivered := false
	for _, c := range clients {
		if err := c.writeJSON(n); err != nil {
			h.unregister(userID, c)
			continue
		}
		delivered = true
	}
	return delivered
}

// Connected reports whether userID has at least one live connection.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.conns {
		for c := range clients {
			_ = c.conn.Close()
		}
	}
	h.conns = nil
}

func (h *Hub) register(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns == nil {
		h.conns = make(map[string]map[*client]struct{})
	}
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*client]struct{})
	}
	h.conns[userID][c] = struct{}{}
}

func (h *Hub) unregister(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
	_ = c.conn.Close()
}

// readLoop discards inbound frames; the channel is push-only. It exists to
// detect the close handshake and connection drops.
func (h *Hub) readLoop(userID string, c *client) {
	defer h.unregister(userID, c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
