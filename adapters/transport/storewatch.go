package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/proofwatch/proofwatch/core"
	"github.com/proofwatch/proofwatch/ports"
)

const mailboxKey = "bridge:mailbox"

// StoreWatch is the fallback transport: envelopes are written under a store
// key and received through the store's change notification. Only contexts
// sharing the same store backend can hear each other.
type StoreWatch struct {
	store ports.Store
}

var _ ports.Transport = (*StoreWatch)(nil)

// NewStoreWatch creates a store-change transport over the given backend.
func NewStoreWatch(store ports.Store) *StoreWatch {
	return &StoreWatch{store: store}
}

func (t *StoreWatch) Send(ctx context.Context, env core.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return t.store.Set(ctx, mailboxKey, string(payload))
}

func (t *StoreWatch) Subscribe(handler func(env core.Envelope)) (cancel func()) {
	return t.store.Watch(context.Background(), mailboxKey, func(value string) {
		var env core.Envelope
		if err := json.Unmarshal([]byte(value), &env); err == nil {
			handler(env)
		}
	})
}

func (t *StoreWatch) Close() error { return nil }
