package core

// Account identifies one wallet account on one network.
type Account struct {
	Address string `json:"address"` // Public key hex of the connected wallet
	Network string `json:"network"` // Chain network name, e.g. "casper-test"
}

// Session represents the wallet connection shared across execution contexts.
// Exactly one authoritative copy exists per browser profile; every context
// holds an eventually consistent replica synchronized by the bridge.
type Session struct {
	Connected bool    `json:"connected"`
	Account   Account `json:"account,omitempty"`
	UpdatedAt int64   `json:"updatedAt"` // Unix milliseconds, bumped on every mutation
}

// Validate checks the session invariant: a connected session must carry an
// account reference.
func (s *Session) Validate() error {
	if s.Connected && s.Account.Address == "" {
		return ErrInvalidSession
	}
	return nil
}

// NewerThan reports whether s should replace other under last-write-wins.
// A disconnected replica is always replaceable; a connected one only yields
// to a strictly newer update.
func (s *Session) NewerThan(other *Session) bool {
	if other == nil || !other.Connected {
		return true
	}
	return s.UpdatedAt > other.UpdatedAt
}

// Equal reports whether applying s over other would change observable state.
func (s *Session) Equal(other *Session) bool {
	if other == nil {
		return false
	}
	return s.Connected == other.Connected &&
		s.Account == other.Account &&
		s.UpdatedAt == other.UpdatedAt
}
