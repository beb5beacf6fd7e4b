package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/proofwatch/proofwatch/core"
	"github.com/proofwatch/proofwatch/ports"
)

// State is the adapter's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

// DefaultConnectWindow bounds how long Connect waits for the SDK to emit an
// outcome. A dismissed connection UI emits nothing at all, so the window is
// the only way to observe an implicit cancel.
const DefaultConnectWindow = 2 * time.Minute

// Adapter normalizes the event-driven wallet SDK into blocking operations
// driven by an explicit state machine. Connect and Disconnect resolve only
// once the machine reaches a terminal state or the window elapses.
type Adapter struct {
	provider ports.WalletProvider
	window   time.Duration

	mu          sync.Mutex
	state       State
	account     core.Account
	hasAccount  bool
	connectCh   chan core.Account
	disconnCh   chan struct{}
	signCh      chan string
	subscribers map[int]func(account core.Account, connected bool)
	nextSubID   int

	done chan struct{}
}

// Option configures the adapter.
type Option func(*Adapter)

// WithConnectWindow overrides the bounded wait for connect/disconnect/sign.
func WithConnectWindow(d time.Duration) Option {
	return func(a *Adapter) { a.window = d }
}

// New wraps a provider and starts consuming its events for the lifetime of
// the adapter.
func New(provider ports.WalletProvider, opts ...Option) *Adapter {
	a := &Adapter{
		provider:    provider,
		window:      DefaultConnectWindow,
		subscribers: make(map[int]func(core.Account, bool)),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.eventLoop()
	return a
}

func (a *Adapter) eventLoop() {
	for {
		select {
		case <-a.done:
			return
		case ev, ok := <-a.provider.Events():
			if !ok {
				return
			}
			a.handleEvent(ev)
		}
	}
}

func (a *Adapter) handleEvent(ev ports.WalletEvent) {
	a.mu.Lock()
	var notify []func(core.Account, bool)
	var account core.Account
	var connected bool

	switch ev.Kind {
	case ports.WalletSignedIn:
		a.state = StateConnected
		a.account = ev.Account
		a.hasAccount = true
		if a.connectCh != nil {
			a.connectCh <- ev.Account
			a.connectCh = nil
		}
		notify, account, connected = a.snapshotLocked()

	case ports.WalletSignedOut:
		a.state = StateDisconnected
		a.account = core.Account{}
		a.hasAccount = false
		if a.disconnCh != nil {
			close(a.disconnCh)
			a.disconnCh = nil
		}
		notify, account, connected = a.snapshotLocked()

	case ports.WalletAccountChanged:
		if a.account != ev.Account {
			a.account = ev.Account
			a.hasAccount = true
			notify, account, connected = a.snapshotLocked()
		}

	case ports.WalletMessageSigned:
		if a.signCh != nil {
			a.signCh <- ev.Signature
			a.signCh = nil
		}
	}
	a.mu.Unlock()

	for _, fn := range notify {
		fn(account, connected)
	}
}

func (a *Adapter) snapshotLocked() ([]func(core.Account, bool), core.Account, bool) {
	fns := make([]func(core.Account, bool), 0, len(a.subscribers))
	for _, fn := range a.subscribers {
		fns = append(fns, fn)
	}
	return fns, a.account, a.state == StateConnected
}

// Connect triggers the SDK's connection UI and waits for the signed-in event.
// Returns core.ErrWalletTimeout when the window elapses with no outcome (the
// user dismissed the UI).
func (a *Adapter) Connect(ctx context.Context) (core.Account, error) {
	a.mu.Lock()
	if a.state == StateConnected {
		account := a.account
		a.mu.Unlock()
		return account, nil
	}
	a.state = StateConnecting
	waiter := make(chan core.Account, 1)
	a.connectCh = waiter
	a.mu.Unlock()

	if err := a.provider.RequestConnect(); err != nil {
		a.resetPending()
		return core.Account{}, err
	}

	select {
	case account := <-waiter:
		return account, nil
	case <-ctx.Done():
		a.resetPending()
		return core.Account{}, ctx.Err()
	case <-time.After(a.window):
		a.resetPending()
		return core.Account{}, core.ErrWalletTimeout
	}
}

// Disconnect triggers the SDK's disconnect flow and waits for the signed-out
// event.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	if a.state == StateDisconnected {
		a.mu.Unlock()
		return nil
	}
	a.state = StateDisconnecting
	waiter := make(chan struct{})
	a.disconnCh = waiter
	a.mu.Unlock()

	if err := a.provider.RequestDisconnect(); err != nil {
		a.resetPending()
		return err
	}

	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		a.resetPending()
		return ctx.Err()
	case <-time.After(a.window):
		a.resetPending()
		return core.ErrWalletTimeout
	}
}

// SignMessage asks the SDK to sign text. An empty signature means the user
// declined; that is not an error.
func (a *Adapter) SignMessage(ctx context.Context, text string) (string, error) {
	a.mu.Lock()
	if a.state != StateConnected {
		a.mu.Unlock()
		return "", core.ErrInvalidSession
	}
	waiter := make(chan string, 1)
	a.signCh = waiter
	a.mu.Unlock()

	if err := a.provider.RequestSign(text); err != nil {
		a.resetPending()
		return "", err
	}

	select {
	case sig := <-waiter:
		return sig, nil
	case <-ctx.Done():
		a.resetPending()
		return "", ctx.Err()
	case <-time.After(a.window):
		a.resetPending()
		return "", core.ErrWalletTimeout
	}
}

// resetPending clears any waiter after a timeout or provider failure. A
// connecting state rolls back to disconnected; a connected one stays put.
func (a *Adapter) resetPending() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connectCh = nil
	a.disconnCh = nil
	a.signCh = nil
	switch a.state {
	case StateConnecting:
		a.state = StateDisconnected
	case StateDisconnecting:
		a.state = StateConnected
	}
}

// Account returns the current account replica.
func (a *Adapter) Account() (core.Account, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.account, a.hasAccount && a.state == StateConnected
}

// State returns the current connection state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// OnChange registers fn for account change notifications. Returns a
// cancellation handle.
func (a *Adapter) OnChange(fn func(account core.Account, connected bool)) (cancel func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextSubID
	a.nextSubID++
	a.subscribers[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subscribers, id)
	}
}

// Close stops the event loop.
func (a *Adapter) Close() {
	close(a.done)
}
