package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/proofwatch/proofwatch/core"
	"github.com/proofwatch/proofwatch/ports"
)

const wsWriteWait = 10 * time.Second

// Websocket is the client half of the page-to-relay transport: a standalone
// web context dials the relay's /ws hub, which fans every envelope out to all
// other connected contexts.
type Websocket struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[int]func(core.Envelope)
	nextID   int
	closed   bool
}

var _ ports.Transport = (*Websocket)(nil)

// DialWebsocket connects to the relay hub at url (ws://.../ws).
func DialWebsocket(ctx context.Context, url string) (*Websocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bridge hub: %w", err)
	}

	t := &Websocket{
		conn:     conn,
		handlers: make(map[int]func(core.Envelope)),
	}
	go t.readLoop()
	return t, nil
}

func (t *Websocket) readLoop() {
	for {
		_, payload, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		var env core.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			continue
		}

		t.mu.Lock()
		handlers := make([]func(core.Envelope), 0, len(t.handlers))
		for _, h := range t.handlers {
			handlers = append(handlers, h)
		}
		t.mu.Unlock()

		for _, h := range handlers {
			h(env)
		}
	}
}

func (t *Websocket) Send(ctx context.Context, env core.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

func (t *Websocket) Subscribe(handler func(env core.Envelope)) (cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.handlers[id] = handler

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.handlers, id)
	}
}

func (t *Websocket) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}
