package core

import (
	"strings"
	"time"
)

// MediaKind enumerates the media categories a completion token can record.
type MediaKind int

const (
	KindUnknown MediaKind = iota
	KindMovie
	KindSeries
	KindAnime
	KindBook
	KindGame
)

func (k MediaKind) Valid() bool {
	return k > KindUnknown && k <= KindGame
}

// MintRequest is one user intent to record a completion on-chain. It is
// consumed exactly once; the returned deploy hash is the only durable
// artifact.
type MintRequest struct {
	ToPublicKey string    `json:"toPublicKey"` // variant-tagged hex, 01=ed25519 02=secp256k1
	Kind        MediaKind `json:"kind"`
	URI         string    `json:"uri"`
	Name        string    `json:"name"`
}

// Validate checks required-field presence. Key format is checked separately,
// after presence, so callers can distinguish the two failure classes.
func (r *MintRequest) Validate() error {
	if strings.TrimSpace(r.ToPublicKey) == "" ||
		strings.TrimSpace(r.URI) == "" ||
		strings.TrimSpace(r.Name) == "" ||
		!r.Kind.Valid() {
		return ErrValidation
	}
	return nil
}

// DeployParams fix the non-request inputs of deploy construction. Two calls
// with equal params and an equal request produce byte-identical unsigned
// bodies.
type DeployParams struct {
	Timestamp time.Time
	TTL       time.Duration
}

// NamedArg is one entry-point argument of a contract call.
type NamedArg struct {
	Name  string `cbor:"name" json:"name"`
	Value string `cbor:"value" json:"value"`
}

// DeployBody is the unsigned part of a deploy that the body hash commits to.
type DeployBody struct {
	ContractHash string     `cbor:"contract_hash" json:"contractHash"`
	EntryPoint   string     `cbor:"entry_point" json:"entryPoint"`
	Args         []NamedArg `cbor:"args" json:"args"`
	Payment      string     `cbor:"payment" json:"payment"` // motes, decimal string
}

// DeployHeader commits to the body hash plus the sequencing parameters.
type DeployHeader struct {
	Account   string `cbor:"account" json:"account"` // signer public key hex
	Timestamp int64  `cbor:"timestamp" json:"timestamp"`
	TTL       int64  `cbor:"ttl" json:"ttl"` // milliseconds
	ChainName string `cbor:"chain_name" json:"chainName"`
	BodyHash  string `cbor:"body_hash" json:"bodyHash"`
}

// Approval is the signature authorizing a deploy.
type Approval struct {
	Signer    string `json:"signer"`
	Signature string `json:"signature"`
}

// Deploy is a fully built contract call, signed once an Approval is attached.
type Deploy struct {
	Hash      string       `json:"hash"`
	Header    DeployHeader `json:"header"`
	Body      DeployBody   `json:"body"`
	Approvals []Approval   `json:"approvals"`
}

// DeployStatus is the chain's view of a submitted deploy. Never cached; every
// lookup re-queries upstream.
type DeployStatus struct {
	Hash         string `json:"hash"`
	BlockHash    string `json:"blockHash,omitempty"`
	Executed     bool   `json:"executed"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}
