package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/proofwatch/proofwatch/core"
)

const hubWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	// The relay is bound to localhost; every local origin (extension page,
	// dashboard) is a legitimate bridge context.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type hubConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *hubConn) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub relays bridge envelopes between websocket-connected contexts: every
// envelope received from one connection is fanned out to all others.
type Hub struct {
	mu    sync.RWMutex
	conns map[*hubConn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*hubConn]struct{})}
}

func (h *Hub) register(c *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *Hub) unregister(c *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

// broadcast sends payload to every connection except the sender, dropping
// connections whose writes fail.
func (h *Hub) broadcast(sender *hubConn, payload []byte) {
	h.mu.RLock()
	conns := make([]*hubConn, 0, len(h.conns))
	for c := range h.conns {
		if c != sender {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(payload); err != nil {
			_ = c.conn.Close()
			h.unregister(c)
		}
	}
}

// Serve upgrades the request and joins the connection to the hub.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	member := &hubConn{conn: conn}
	h.register(member)
	defer func() {
		h.unregister(member)
		_ = conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		// Only well-formed envelopes are relayed; everything else is dropped.
		var env core.Envelope
		if err := json.Unmarshal(payload, &env); err != nil || env.Type == "" {
			continue
		}
		h.broadcast(member, payload)
	}
}
