package ports

import "github.com/proofwatch/proofwatch/core"

// WalletEventKind enumerates the events a wallet provider emits.
type WalletEventKind int

const (
	WalletSignedIn WalletEventKind = iota
	WalletSignedOut
	WalletAccountChanged
	WalletMessageSigned
)

// WalletEvent is one inbound event from the wallet SDK. Signature is set only
// for WalletMessageSigned; an empty Signature on that kind means the user
// declined.
type WalletEvent struct {
	Kind      WalletEventKind
	Account   core.Account
	Signature string
}

// WalletProvider is the event-driven surface of the third-party wallet SDK.
// Request* calls only trigger the SDK's UI; outcomes arrive on Events. A
// dismissed UI emits no event at all.
type WalletProvider interface {
	RequestConnect() error
	RequestDisconnect() error
	RequestSign(message string) error
	Events() <-chan WalletEvent
}
