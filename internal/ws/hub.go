package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messagely/internal/domain"
	"messagely/internal/metrics"
)

const (
	writeWait = 10 * time.Second

	// Events queued per socket before the socket counts as stalled.
	sendBuffer = 32
)

// Client is one open socket. Only its writer goroutine writes to conn.
type Client struct {
	username string
	conn     *websocket.Conn
	send     chan []byte
}

// Hub tracks open notification sockets by username. Notify only enqueues,
// so a slow reader never holds up the caller.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*Client]struct{}
	log     *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     log,
	}
}

// Register adds conn for username and starts its writer.
func (h *Hub) Register(username string, conn *websocket.Conn) *Client {
	c := &Client{username: username, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.clients[username] == nil {
		h.clients[username] = make(map[*Client]struct{})
	}
	h.clients[username][c] = struct{}{}
	metrics.WSConnectionsActive.Inc()
	h.mu.Unlock()

	go h.writePump(c)
	return c
}

// Unregister removes c. Calling it for an already dropped client is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked closes c.send exactly once; writePump then exits.
func (h *Hub) removeLocked(c *Client) {
	set, ok := h.clients[c.username]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	metrics.WSConnectionsActive.Dec()
	if len(set) == 0 {
		delete(h.clients, c.username)
	}
}

// Connections reports how many sockets username has open.
func (h *Hub) Connections(username string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[username])
}

// Notify queues ev for every open socket of username.
func (h *Hub) Notify(username string, ev domain.Event) {
	h.BroadcastToUsers([]string{username}, ev)
}

// BroadcastToUsers queues payload for all sockets of the given users. A socket
// whose queue is full is closed and dropped.
func (h *Hub) BroadcastToUsers(usernames []string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("ws encode failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, name := range usernames {
		for c := range h.clients[name] {
			select {
			case c.send <- b:
			default:
				h.log.Warn("ws client stalled, dropping", "username", name)
				h.removeLocked(c)
				c.conn.Close()
			}
		}
	}
}

func (h *Hub) writePump(c *Client) {
	defer c.conn.Close()
	for b := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			h.log.Debug("ws write failed", "username", c.username, "error", err)
			h.Unregister(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}
