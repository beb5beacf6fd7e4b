package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/proofwatch/proofwatch/core"
	"github.com/proofwatch/proofwatch/ports"
)

// BridgeState is the per-context protocol state.
type BridgeState int

const (
	BridgeUninitialized BridgeState = iota
	BridgeAwaitingPeer
	BridgeSynced
	BridgeDisconnected
)

const (
	sessionKey = "session"

	defaultPushWait       = 5 * time.Second
	defaultRequestWait    = 3 * time.Second
	defaultDisconnectWait = 3 * time.Second

	seenRingSize = 256
)

// ackPayload references the envelope an ack answers.
type ackPayload struct {
	AckFor string `json:"ackFor"`
}

// Bridge keeps one execution context's session replica consistent with its
// peers. All transports are broadcast to opportunistically; delivery is best
// effort and every request/response exchange resolves within a bound whether
// or not any peer exists. Conflicts resolve by last-write-wins on the session
// timestamp: a connected replica is only replaced by a strictly newer payload.
type Bridge struct {
	id         string
	store      ports.Store
	tokenizer  ports.Tokenizer // optional; signs pushes for untrusted transports
	transports []ports.Transport

	pushWait       time.Duration
	requestWait    time.Duration
	disconnectWait time.Duration
	now            func() time.Time

	mu          sync.Mutex
	state       BridgeState
	session     core.Session
	subscribers map[int]func(core.Session)
	nextSubID   int
	msgHandlers map[core.MessageType][]func(core.Envelope)
	seen        *seenRing
	acks        map[string]chan struct{}
	cancels     []func()
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithTokenizer makes the bridge sign outgoing session pushes and accept
// inbound tokens.
func WithTokenizer(tk ports.Tokenizer) BridgeOption {
	return func(b *Bridge) { b.tokenizer = tk }
}

// WithWaitBounds overrides the protocol's bounded waits.
func WithWaitBounds(push, request, disconnect time.Duration) BridgeOption {
	return func(b *Bridge) {
		b.pushWait = push
		b.requestWait = request
		b.disconnectWait = disconnect
	}
}

// NewBridge creates a bridge for one execution context. The context id must
// be unique among peers; it lets a context drop its own broadcasts when a
// loopback transport echoes them back.
func NewBridge(id string, store ports.Store, transports []ports.Transport, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		id:             id,
		store:          store,
		transports:     transports,
		pushWait:       defaultPushWait,
		requestWait:    defaultRequestWait,
		disconnectWait: defaultDisconnectWait,
		now:            time.Now,
		subscribers:    make(map[int]func(core.Session)),
		msgHandlers:    make(map[core.MessageType][]func(core.Envelope)),
		seen:           newSeenRing(seenRingSize),
		acks:           make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start mounts the context: subscribe to all transports, try the fast path
// through the local store, and otherwise ask peers for a session, waiting at
// most the request bound. A context with no peers stays in AWAITING_PEER;
// that is not an error.
func (b *Bridge) Start(ctx context.Context) error {
	for _, t := range b.transports {
		cancel := t.Subscribe(b.handle)
		b.mu.Lock()
		b.cancels = append(b.cancels, cancel)
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.state = BridgeAwaitingPeer
	b.mu.Unlock()

	// Fast path: a persisted connected session needs no peer at all.
	if raw, err := b.store.Get(ctx, sessionKey); err == nil {
		var session core.Session
		if json.Unmarshal([]byte(raw), &session) == nil && session.Connected && session.Validate() == nil {
			b.apply(ctx, &session, false)
			return nil
		}
	}

	// Ask peers. Absence of an answer leaves the context unsynced, silently.
	synced := make(chan struct{}, 1)
	cancel := b.OnSessionChange(func(core.Session) {
		select {
		case synced <- struct{}{}:
		default:
		}
	})
	defer cancel()

	b.broadcast(ctx, b.newEnvelope(core.MsgSessionRequest, nil))

	select {
	case <-synced:
	case <-ctx.Done():
	case <-time.After(b.requestWait):
	}
	return nil
}

// SignIn records a locally initiated connection and pushes it to all peers.
// The push is fire-and-forget: the returned acked flag reports whether any
// peer acknowledged within the bound, but false is not a failure.
func (b *Bridge) SignIn(ctx context.Context, account core.Account) (acked bool, err error) {
	session := core.Session{
		Connected: true,
		Account:   account,
		UpdatedAt: b.bumpTimestamp(),
	}
	b.apply(ctx, &session, false)
	return b.pushSession(ctx, core.MsgSessionPush, b.pushWait)
}

// SignOut clears the local session and tells peers to disconnect.
func (b *Bridge) SignOut(ctx context.Context) (acked bool, err error) {
	session := core.Session{UpdatedAt: b.bumpTimestamp()}
	b.apply(ctx, &session, true)
	return b.pushSession(ctx, core.MsgDisconnect, b.disconnectWait)
}

// Session returns the current replica and protocol state.
func (b *Bridge) Session() (core.Session, BridgeState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session, b.state
}

// OnSessionChange registers fn for session notifications. Applying an
// identical payload fires no notification.
func (b *Bridge) OnSessionChange(fn func(session core.Session)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSubID
	b.nextSubID++
	b.subscribers[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers, id)
	}
}

// OnMessage registers fn for envelopes of one type, e.g. media-detected
// events feeding the tracker. Bridge-internal types are still handled by the
// bridge itself.
func (b *Bridge) OnMessage(msgType core.MessageType, fn func(env core.Envelope)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgHandlers[msgType] = append(b.msgHandlers[msgType], fn)
}

// Publish broadcasts an arbitrary envelope payload, e.g. a media-detected
// event from a detecting context.
func (b *Bridge) Publish(ctx context.Context, msgType core.MessageType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.broadcast(ctx, b.newEnvelope(msgType, raw))
	return nil
}

// Close cancels all transport subscriptions.
func (b *Bridge) Close() {
	b.mu.Lock()
	cancels := b.cancels
	b.cancels = nil
	b.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// bumpTimestamp returns a timestamp strictly greater than the current
// session's, keeping UpdatedAt monotonic even under clock skew.
func (b *Bridge) bumpTimestamp() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts := b.now().UnixMilli()
	if ts <= b.session.UpdatedAt {
		ts = b.session.UpdatedAt + 1
	}
	return ts
}

// apply installs a session locally: persist, transition, notify. Identical
// payloads are a no-op. disconnected forces the DISCONNECTED state instead of
// SYNCED.
func (b *Bridge) apply(ctx context.Context, session *core.Session, disconnected bool) {
	b.mu.Lock()
	if session.Equal(&b.session) && b.state != BridgeAwaitingPeer && b.state != BridgeUninitialized {
		b.mu.Unlock()
		return
	}
	b.session = *session
	if disconnected {
		b.state = BridgeDisconnected
	} else {
		b.state = BridgeSynced
	}
	fns := make([]func(core.Session), 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		fns = append(fns, fn)
	}
	snapshot := b.session
	b.mu.Unlock()

	// Persistence is best effort; an unreachable store degrades to an
	// unsynced replica on the next mount, it must not fail the sign-in.
	if raw, err := json.Marshal(session); err == nil {
		_ = b.store.Set(ctx, sessionKey, string(raw))
	}

	for _, fn := range fns {
		fn(snapshot)
	}
}

// pushSession broadcasts the current session and waits up to bound for any
// ack. Resolves successfully either way.
func (b *Bridge) pushSession(ctx context.Context, msgType core.MessageType, bound time.Duration) (bool, error) {
	b.mu.Lock()
	session := b.session
	b.mu.Unlock()

	// With a tokenizer the signed token is the only session carrier; a bare
	// session next to it would hand peers an unverified copy to trust.
	var payload core.SessionPayload
	if b.tokenizer != nil {
		token, err := b.tokenizer.SessionToToken(&session)
		if err != nil {
			return false, err
		}
		payload.Token = token
	} else {
		payload.Session = &session
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	env := b.newEnvelope(msgType, raw)
	ackCh := make(chan struct{}, 1)
	b.mu.Lock()
	b.acks[env.ID] = ackCh
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.acks, env.ID)
		b.mu.Unlock()
	}()

	b.broadcast(ctx, env)

	select {
	case <-ackCh:
		return true, nil
	case <-ctx.Done():
		return false, nil
	case <-time.After(bound):
		// No peer answered. That is "no peer available", not a failure.
		return false, nil
	}
}

func (b *Bridge) newEnvelope(msgType core.MessageType, payload json.RawMessage) core.Envelope {
	return core.Envelope{
		ID:      uuid.New().String(),
		Type:    msgType,
		From:    b.id,
		Payload: payload,
		SentAt:  b.now().UnixMilli(),
	}
}

// broadcast sends env on every transport, ignoring per-transport failures.
func (b *Bridge) broadcast(ctx context.Context, env core.Envelope) {
	for _, t := range b.transports {
		_ = t.Send(ctx, env)
	}
}

// handle processes one inbound envelope from any transport.
func (b *Bridge) handle(env core.Envelope) {
	if env.From == b.id {
		return
	}
	b.mu.Lock()
	if b.seen.has(env.ID) {
		b.mu.Unlock()
		return
	}
	b.seen.add(env.ID)
	extra := append([]func(core.Envelope){}, b.msgHandlers[env.Type]...)
	b.mu.Unlock()

	ctx := context.Background()

	switch env.Type {
	case core.MsgSessionRequest:
		b.answerSessionRequest(ctx)

	case core.MsgSessionPush:
		if session := b.decodeSession(env.Payload); session != nil {
			b.applyIncoming(ctx, session)
			b.sendAck(ctx, core.MsgSessionAck, env.ID)
		}

	case core.MsgDisconnect:
		if session := b.decodeSession(env.Payload); session != nil && !session.Connected {
			b.applyIncomingDisconnect(ctx, session)
			b.sendAck(ctx, core.MsgDisconnectAck, env.ID)
		} else if b.tokenizer == nil {
			// Payload-less disconnects are honored only on trusted transports;
			// a signed bridge requires the token like any other push.
			cleared := core.Session{UpdatedAt: env.SentAt}
			b.applyIncomingDisconnect(ctx, &cleared)
			b.sendAck(ctx, core.MsgDisconnectAck, env.ID)
		}

	case core.MsgSessionAck, core.MsgDisconnectAck:
		var ack ackPayload
		if json.Unmarshal(env.Payload, &ack) == nil {
			b.mu.Lock()
			ch := b.acks[ack.AckFor]
			b.mu.Unlock()
			if ch != nil {
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}

	case core.MsgReady, core.MsgMediaDetected:
		// Delivered to registered handlers below.

	default:
		// Unrecognized types are ignored, not errors.
		return
	}

	for _, fn := range extra {
		fn(env)
	}
}

// answerSessionRequest pushes the local session to whoever asked, but only
// when this context actually holds a connected one.
func (b *Bridge) answerSessionRequest(ctx context.Context) {
	b.mu.Lock()
	connected := b.session.Connected
	b.mu.Unlock()
	if !connected {
		return
	}
	_, _ = b.pushSession(ctx, core.MsgSessionPush, 0)
}

// decodeSession extracts a session from a push payload. With a tokenizer
// configured only a verifying token is accepted; token-less payloads are
// dropped, since anything on an untrusted transport can carry a bare session.
// Without one the bare session is taken as-is, subject to validation.
func (b *Bridge) decodeSession(raw json.RawMessage) *core.Session {
	var payload core.SessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	if b.tokenizer != nil {
		if payload.Token == "" {
			return nil
		}
		session, err := b.tokenizer.TokenToSession(payload.Token)
		if err != nil {
			return nil
		}
		return session
	}
	if payload.Session == nil || payload.Session.Validate() != nil {
		return nil
	}
	return payload.Session
}

// applyIncoming applies a pushed session under last-write-wins: only when the
// local replica is disconnected or the incoming payload is strictly newer.
func (b *Bridge) applyIncoming(ctx context.Context, session *core.Session) {
	if !session.Connected {
		return
	}
	b.mu.Lock()
	current := b.session
	b.mu.Unlock()
	if !session.NewerThan(&current) {
		return
	}
	b.apply(ctx, session, false)
}

func (b *Bridge) applyIncomingDisconnect(ctx context.Context, session *core.Session) {
	b.mu.Lock()
	current := b.session
	b.mu.Unlock()
	if current.Connected && session.UpdatedAt < current.UpdatedAt {
		// Stale disconnect from before the current session; never downgrade
		// without cause.
		return
	}
	b.apply(ctx, session, true)
}

// sendAck answers env ID on all transports, best effort.
func (b *Bridge) sendAck(ctx context.Context, msgType core.MessageType, ackFor string) {
	raw, _ := json.Marshal(ackPayload{AckFor: ackFor})
	b.broadcast(ctx, b.newEnvelope(msgType, raw))
}

// seenRing is a fixed-size record of recently handled envelope IDs, dropping
// duplicates that arrive on a second transport.
type seenRing struct {
	ids  []string
	set  map[string]struct{}
	next int
}

func newSeenRing(size int) *seenRing {
	return &seenRing{
		ids: make([]string, size),
		set: make(map[string]struct{}, size),
	}
}

func (r *seenRing) has(id string) bool {
	_, ok := r.set[id]
	return ok
}

func (r *seenRing) add(id string) {
	if old := r.ids[r.next]; old != "" {
		delete(r.set, old)
	}
	r.ids[r.next] = id
	r.set[id] = struct{}{}
	r.next = (r.next + 1) % len(r.ids)
}
