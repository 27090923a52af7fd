package ws

import (
	"encoding/json"
	"sync"
	"time"

	"ilpotaxi/pkg/zlog"

	"github.com/gorilla/websocket"
)

// Hub tracks live web-chat connections keyed by session id. One session may
// hold several tabs, all of them receive every payload.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	if c == nil || c.sessionID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.sessionID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.clients[c.sessionID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) Unregister(c *Client) {
	if c == nil || c.sessionID == "" {
		return
	}
	h.mu.Lock()
	set := h.clients[c.sessionID]
	if set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.sessionID)
		}
	}
	h.mu.Unlock()
	c.Close()
}

// Connected reports whether at least one connection exists for the session.
func (h *Hub) Connected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID]) > 0
}

func (h *Hub) Send(sessionID string, payload []byte) bool {
	if sessionID == "" || len(payload) == 0 {
		return false
	}

	// copy under the lock; the live set may be mutated by a concurrent
	// register/unregister while we deliver
	h.mu.RLock()
	set := h.clients[sessionID]
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	ok := false
	for _, c := range targets {
		if c.enqueue(payload) {
			ok = true
		} else {
			// closed or hopelessly behind, drop the connection
			h.Unregister(c)
		}
	}
	return ok
}

func (h *Hub) SendJSON(sessionID string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Send(sessionID, b)
	return nil
}

// Drain closes every connection, called on shutdown.
func (h *Hub) Drain() {
	h.mu.Lock()
	clients := make([]*Client, 0)
	for _, set := range h.clients {
		for c := range set {
			clients = append(clients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.mu.Unlock()
	for _, c := range clients {
		c.Close()
	}
}

type Client struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func NewClient(sessionID string, conn *websocket.Conn) *Client {
	return &Client{
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, 64),
	}
}

func (c *Client) SessionID() string {
	return c.sessionID
}

// enqueue hands the payload to the write pump. The flag check and the channel
// send stay under one lock so Close cannot slip between them.
func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) WritePump() {
	if c.conn == nil {
		return
	}
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			zlog.Error(err.Error())
			return
		}
	}
}
