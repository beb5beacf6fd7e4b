package service

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proofwatch/proofwatch/adapters/store"
	"github.com/proofwatch/proofwatch/core"
	"github.com/proofwatch/proofwatch/internal/keys"
)

// fakeChain records submissions and serves canned statuses.
type fakeChain struct {
	putCalls int
	getCalls int
	putErr   error
	statuses map[string]*core.DeployStatus
	lastPut  *core.Deploy
}

func (f *fakeChain) PutDeploy(ctx context.Context, deploy *core.Deploy) (string, error) {
	f.putCalls++
	f.lastPut = deploy
	if f.putErr != nil {
		return "", f.putErr
	}
	return deploy.Hash, nil
}

func (f *fakeChain) GetDeploy(ctx context.Context, hash string) (*core.DeployStatus, error) {
	f.getCalls++
	status, ok := f.statuses[hash]
	if !ok {
		return nil, core.ErrNotFound
	}
	return status, nil
}

func newTestService(t *testing.T, chain *fakeChain) *MintService {
	t.Helper()
	signer, err := keys.Generate(keys.AlgEd25519)
	require.NoError(t, err)
	svc := NewMintService(signer, chain, store.NewMemoryStore(), MintConfig{
		ContractHash:  "hash-5be5b0ef09a7016e11292848d77f539e55791cb07a9012f99bcd7d54ea11f5c7",
		ChainName:     "casper-test",
		PaymentAmount: decimal.NewFromInt(5_000_000_000),
	})
	svc.now = func() time.Time { return time.UnixMilli(1725000000000) }
	return svc
}

func validRequest(t *testing.T) core.MintRequest {
	t.Helper()
	recipient, err := keys.Generate(keys.AlgSecp256k1)
	require.NoError(t, err)
	return core.MintRequest{
		ToPublicKey: recipient.PublicKey().Hex(),
		Kind:        core.KindMovie,
		URI:         "https://example.com/x",
		Name:        "Movie X",
	}
}

func TestBuildDeployIsDeterministic(t *testing.T) {
	svc := newTestService(t, &fakeChain{})
	req := validRequest(t)
	recipient, err := keys.ParsePublicKey(req.ToPublicKey)
	require.NoError(t, err)

	params := core.DeployParams{Timestamp: time.UnixMilli(1725000000000), TTL: 30 * time.Minute}

	first, err := svc.BuildDeploy(req, recipient, params)
	require.NoError(t, err)
	second, err := svc.BuildDeploy(req, recipient, params)
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.Header, second.Header)
	assert.Equal(t, first.Body, second.Body)
	assert.Empty(t, first.Approvals, "construction must not sign")

	// Different sequencing parameters change the hash but not the body.
	shifted, err := svc.BuildDeploy(req, recipient, core.DeployParams{
		Timestamp: time.UnixMilli(1725000001000),
		TTL:       30 * time.Minute,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash, shifted.Hash)
	assert.Equal(t, first.Body, shifted.Body)
}

func TestMintValidatesBeforeAnyNetworkCall(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*core.MintRequest)
	}{
		{"empty recipient", func(r *core.MintRequest) { r.ToPublicKey = "" }},
		{"empty uri", func(r *core.MintRequest) { r.URI = "" }},
		{"empty name", func(r *core.MintRequest) { r.Name = "  " }},
		{"zero kind", func(r *core.MintRequest) { r.Kind = core.KindUnknown }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chain := &fakeChain{}
			svc := newTestService(t, chain)
			req := validRequest(t)
			tc.mutate(&req)

			_, err := svc.Mint(context.Background(), req, "")
			assert.ErrorIs(t, err, core.ErrValidation)
			assert.Zero(t, chain.putCalls, "chain must not be contacted")
		})
	}
}

func TestMintRejectsUndecodableKeys(t *testing.T) {
	for _, bad := range []string{
		"not-hex",
		"03deadbeef",
		"01aabb",
		"02000000000000000000000000000000000000000000000000000000000000000000",
	} {
		chain := &fakeChain{}
		svc := newTestService(t, chain)
		req := validRequest(t)
		req.ToPublicKey = bad

		_, err := svc.Mint(context.Background(), req, "")
		assert.ErrorIs(t, err, core.ErrKeyFormat, "key %q", bad)
		assert.Zero(t, chain.putCalls)
	}
}

func TestMintSubmitsSignedDeploy(t *testing.T) {
	chain := &fakeChain{}
	svc := newTestService(t, chain)

	hash, err := svc.Mint(context.Background(), validRequest(t), "")
	require.NoError(t, err)
	assert.Len(t, hash, 64)
	_, err = hex.DecodeString(hash)
	assert.NoError(t, err)

	require.NotNil(t, chain.lastPut)
	require.Len(t, chain.lastPut.Approvals, 1)
	approval := chain.lastPut.Approvals[0]
	assert.Equal(t, svc.SignerPublicKey(), approval.Signer)

	// The approval verifies against the deploy hash.
	signerPub, err := keys.ParsePublicKey(approval.Signer)
	require.NoError(t, err)
	digest, err := hex.DecodeString(chain.lastPut.Hash)
	require.NoError(t, err)
	sig, err := hex.DecodeString(approval.Signature)
	require.NoError(t, err)
	assert.True(t, signerPub.Verify(digest, sig))
}

func TestMintSubmissionErrorPassthrough(t *testing.T) {
	chain := &fakeChain{putErr: core.ErrSubmission}
	svc := newTestService(t, chain)

	_, err := svc.Mint(context.Background(), validRequest(t), "")
	assert.ErrorIs(t, err, core.ErrSubmission)
}

func TestMintIdempotencyWindow(t *testing.T) {
	chain := &fakeChain{}
	svc := newTestService(t, chain)
	req := validRequest(t)

	first, err := svc.Mint(context.Background(), req, "client-key-1")
	require.NoError(t, err)
	assert.Equal(t, 1, chain.putCalls)

	retried, err := svc.Mint(context.Background(), req, "client-key-1")
	require.NoError(t, err)
	assert.Equal(t, first, retried)
	assert.Equal(t, 1, chain.putCalls, "retry within the window must not re-submit")

	// A different key is a distinct request.
	_, err = svc.Mint(context.Background(), req, "client-key-2")
	require.NoError(t, err)
	assert.Equal(t, 2, chain.putCalls)

	// No key preserves the reference fire-and-forget behavior.
	_, err = svc.Mint(context.Background(), req, "")
	require.NoError(t, err)
	assert.Equal(t, 3, chain.putCalls)
}

func TestStatusRequeriesUpstreamEveryCall(t *testing.T) {
	chain := &fakeChain{statuses: map[string]*core.DeployStatus{
		"abc": {Hash: "abc", Executed: true, Success: true},
	}}
	svc := newTestService(t, chain)

	for i := 0; i < 3; i++ {
		status, err := svc.Status(context.Background(), "abc")
		require.NoError(t, err)
		assert.True(t, status.Success)
	}
	assert.Equal(t, 3, chain.getCalls)

	_, err := svc.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
