package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"

	"github.com/proofwatch/proofwatch/core"
	"github.com/proofwatch/proofwatch/internal/keys"
	"github.com/proofwatch/proofwatch/ports"
)

const (
	mintEntryPoint = "mint"

	// How long a retried mint with the same idempotency key returns the
	// original deploy hash instead of re-submitting.
	idempotencyWindowSeconds = 600

	defaultDeployTTL = 30 * time.Minute
)

// Canonical encoding keeps deploy bodies byte-identical for identical inputs.
var deployEncMode cbor.EncMode

func init() {
	var err error
	deployEncMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// MintService turns validated mint requests into signed, submitted deploys.
// It is the only component holding the custodial signing key. Requests are
// independent; the key and chain client are read-only shared state, so the
// service is safe for concurrent use without locking.
type MintService struct {
	signer       *keys.PrivateKey
	chain        ports.ChainClient
	store        ports.Store // nil disables the idempotency window
	contractHash string
	chainName    string
	payment      decimal.Decimal
	deployTTL    time.Duration
	now          func() time.Time
}

// MintConfig carries the static deploy parameters.
type MintConfig struct {
	ContractHash  string
	ChainName     string
	PaymentAmount decimal.Decimal
}

// NewMintService creates a mint service around a loaded signing key. Pass a
// nil store to disable idempotency-key handling.
func NewMintService(signer *keys.PrivateKey, chain ports.ChainClient, store ports.Store, cfg MintConfig) *MintService {
	return &MintService{
		signer:       signer,
		chain:        chain,
		store:        store,
		contractHash: cfg.ContractHash,
		chainName:    cfg.ChainName,
		payment:      cfg.PaymentAmount,
		deployTTL:    defaultDeployTTL,
		now:          time.Now,
	}
}

// SignerPublicKey returns the hex form of the custodial key's public half.
func (s *MintService) SignerPublicKey() string {
	return s.signer.PublicKey().Hex()
}

// ChainName returns the configured target network.
func (s *MintService) ChainName() string { return s.chainName }

// ContractHash returns the configured target contract.
func (s *MintService) ContractHash() string { return s.contractHash }

// Mint validates req, builds and signs a deploy, and submits it. Validation
// order is fixed: field presence, then key format, then construction; the
// chain is never contacted before all preconditions hold. idemKey, when
// non-empty, deduplicates retries within the idempotency window.
func (s *MintService) Mint(ctx context.Context, req core.MintRequest, idemKey string) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	recipient, err := keys.ParsePublicKey(req.ToPublicKey)
	if err != nil {
		return "", err
	}

	if idemKey != "" && s.store != nil {
		if hash, err := s.store.Get(ctx, "idem:"+idemKey); err == nil {
			return hash, nil
		}
	}

	deploy, err := s.BuildDeploy(req, recipient, core.DeployParams{
		Timestamp: s.now(),
		TTL:       s.deployTTL,
	})
	if err != nil {
		return "", err
	}
	if err := s.SignDeploy(deploy); err != nil {
		return "", err
	}

	hash, err := s.chain.PutDeploy(ctx, deploy)
	if err != nil {
		return "", err
	}

	if idemKey != "" && s.store != nil {
		// Best effort: losing the record only costs dedup, not correctness.
		_ = s.store.SetTTL(ctx, "idem:"+idemKey, hash, idempotencyWindowSeconds)
	}

	return hash, nil
}

// BuildDeploy constructs the unsigned deploy. Given equal request fields and
// equal params the result is byte-identical on every call; signing happens
// separately because signatures are not deterministic across schemes.
func (s *MintService) BuildDeploy(req core.MintRequest, recipient keys.PublicKey, params core.DeployParams) (*core.Deploy, error) {
	body := core.DeployBody{
		ContractHash: s.contractHash,
		EntryPoint:   mintEntryPoint,
		Args: []core.NamedArg{
			{Name: "recipient", Value: recipient.Hex()},
			{Name: "kind", Value: strconv.Itoa(int(req.Kind))},
			{Name: "uri", Value: req.URI},
			{Name: "name", Value: req.Name},
		},
		Payment: s.payment.String(),
	}

	bodyBytes, err := deployEncMode.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode deploy body: %w", err)
	}
	bodyHash := blake2b.Sum256(bodyBytes)

	header := core.DeployHeader{
		Account:   s.signer.PublicKey().Hex(),
		Timestamp: params.Timestamp.UTC().UnixMilli(),
		TTL:       params.TTL.Milliseconds(),
		ChainName: s.chainName,
		BodyHash:  hex.EncodeToString(bodyHash[:]),
	}

	headerBytes, err := deployEncMode.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("encode deploy header: %w", err)
	}
	deployHash := blake2b.Sum256(headerBytes)

	return &core.Deploy{
		Hash:   hex.EncodeToString(deployHash[:]),
		Header: header,
		Body:   body,
	}, nil
}

// SignDeploy attaches the custodial approval over the deploy hash.
func (s *MintService) SignDeploy(deploy *core.Deploy) error {
	digest, err := hex.DecodeString(deploy.Hash)
	if err != nil {
		return fmt.Errorf("decode deploy hash: %w", err)
	}
	sig, err := s.signer.Sign(digest)
	if err != nil {
		return fmt.Errorf("sign deploy: %w", err)
	}
	deploy.Approvals = append(deploy.Approvals, core.Approval{
		Signer:    s.signer.PublicKey().Hex(),
		Signature: hex.EncodeToString(sig),
	})
	return nil
}

// Status re-queries the chain for the deploy's current state. Never cached:
// inclusion and finality change over time.
func (s *MintService) Status(ctx context.Context, hash string) (*core.DeployStatus, error) {
	return s.chain.GetDeploy(ctx, hash)
}
