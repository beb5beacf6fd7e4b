package keys

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proofwatch/proofwatch/core"
)

func TestParsePublicKeyRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{AlgEd25519, AlgSecp256k1} {
		priv, err := Generate(alg)
		require.NoError(t, err)

		pub := priv.PublicKey()
		parsed, err := ParsePublicKey(pub.Hex())
		require.NoError(t, err)
		assert.Equal(t, pub.Alg, parsed.Alg)
		assert.Equal(t, pub.Bytes, parsed.Bytes)
	}
}

func TestParsePublicKeyRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"not hex", "zz01"},
		{"empty", ""},
		{"unknown tag", "03aa"},
		{"ed25519 wrong length", "01aabb"},
		{"secp256k1 wrong length", "02aabb"},
		{"secp256k1 not on curve", "02000000000000000000000000000000000000000000000000000000000000000000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePublicKey(tc.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrKeyFormat))
		})
	}
}

func TestSignVerify(t *testing.T) {
	digest := make([]byte, 32)
	for i := range digest {
		digest[i] = byte(i)
	}

	for _, alg := range []Algorithm{AlgEd25519, AlgSecp256k1} {
		priv, err := Generate(alg)
		require.NoError(t, err)

		sig, err := priv.Sign(digest)
		require.NoError(t, err)
		assert.True(t, priv.PublicKey().Verify(digest, sig))

		tampered := append([]byte(nil), digest...)
		tampered[0] ^= 0xff
		assert.False(t, priv.PublicKey().Verify(tampered, sig))
	}
}

func TestLoadFromFile(t *testing.T) {
	// Tagged ed25519 seed, surrounded by whitespace the loader must ignore.
	seedHex := "01b2f8166f4d9ff2e03f33a36cf308f7e93b73c042f57929a0f2b2e45ef0662de8"
	path := filepath.Join(t.TempDir(), "signer.key")
	require.NoError(t, os.WriteFile(path, []byte("  "+seedHex+"\n"), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, AlgEd25519, loaded.PublicKey().Alg)

	// Same seed parses to the same public key.
	again, err := Parse(seedHex)
	require.NoError(t, err)
	assert.Equal(t, loaded.PublicKey().Hex(), again.PublicKey().Hex())
}

func TestLoadFailures(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.key"))
	require.Error(t, err)

	_, err = Parse("01deadbeef")
	require.Error(t, err)

	_, err = Parse("09" + "b2f8166f4d9ff2e03f33a36cf308f7e93b73c042f57929a0f2b2e45ef0662de8")
	require.Error(t, err)
}
