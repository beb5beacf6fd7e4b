package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/proofwatch/proofwatch/core"
)

// Algorithm tags a key with its signature scheme. The tag is the first byte
// of the hex-encoded wire form.
type Algorithm byte

const (
	AlgEd25519   Algorithm = 0x01
	AlgSecp256k1 Algorithm = 0x02
)

const (
	ed25519KeyLen   = ed25519.PublicKeySize // 32
	secp256k1KeyLen = 33                    // compressed point
	seedLen         = 32
)

// PublicKey is a variant-tagged public key.
type PublicKey struct {
	Alg   Algorithm
	Bytes []byte
}

// ParsePublicKey decodes a variant-tagged hex public key. The first byte
// selects the algorithm; the remainder must be a valid key of that variant.
func ParsePublicKey(s string) (PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: not hex encoded", core.ErrKeyFormat)
	}
	if len(raw) < 2 {
		return PublicKey{}, fmt.Errorf("%w: too short", core.ErrKeyFormat)
	}

	alg := Algorithm(raw[0])
	body := raw[1:]

	switch alg {
	case AlgEd25519:
		if len(body) != ed25519KeyLen {
			return PublicKey{}, fmt.Errorf("%w: ed25519 key must be %d bytes, got %d", core.ErrKeyFormat, ed25519KeyLen, len(body))
		}
	case AlgSecp256k1:
		if len(body) != secp256k1KeyLen {
			return PublicKey{}, fmt.Errorf("%w: secp256k1 key must be %d bytes, got %d", core.ErrKeyFormat, secp256k1KeyLen, len(body))
		}
		if _, err := crypto.DecompressPubkey(body); err != nil {
			return PublicKey{}, fmt.Errorf("%w: not a point on secp256k1", core.ErrKeyFormat)
		}
	default:
		return PublicKey{}, fmt.Errorf("%w: unknown algorithm tag %#02x", core.ErrKeyFormat, raw[0])
	}

	return PublicKey{Alg: alg, Bytes: body}, nil
}

// Hex returns the variant-tagged hex form.
func (p PublicKey) Hex() string {
	return hex.EncodeToString(append([]byte{byte(p.Alg)}, p.Bytes...))
}

// Verify checks sig over digest under p's scheme.
func (p PublicKey) Verify(digest, sig []byte) bool {
	switch p.Alg {
	case AlgEd25519:
		return ed25519.Verify(ed25519.PublicKey(p.Bytes), digest, sig)
	case AlgSecp256k1:
		if len(sig) < 64 {
			return false
		}
		return crypto.VerifySignature(p.Bytes, digest, sig[:64])
	}
	return false
}

// PrivateKey is the custodial signing key held by the relay.
type PrivateKey struct {
	alg  Algorithm
	ed   ed25519.PrivateKey
	secp []byte // 32-byte scalar
}

// Load reads a variant-tagged hex private key from a key file. The file holds
// the algorithm tag followed by a 32-byte seed (ed25519) or scalar
// (secp256k1); surrounding whitespace is ignored.
func Load(path string) (*PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return Parse(strings.TrimSpace(string(data)))
}

// Parse decodes a variant-tagged hex private key.
func Parse(s string) (*PrivateKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("key is not hex encoded")
	}
	if len(raw) != 1+seedLen {
		return nil, fmt.Errorf("key must be %d bytes, got %d", 1+seedLen, len(raw))
	}

	switch Algorithm(raw[0]) {
	case AlgEd25519:
		return &PrivateKey{alg: AlgEd25519, ed: ed25519.NewKeyFromSeed(raw[1:])}, nil
	case AlgSecp256k1:
		if _, err := crypto.ToECDSA(raw[1:]); err != nil {
			return nil, fmt.Errorf("invalid secp256k1 scalar: %v", err)
		}
		return &PrivateKey{alg: AlgSecp256k1, secp: append([]byte(nil), raw[1:]...)}, nil
	default:
		return nil, fmt.Errorf("unknown algorithm tag %#02x", raw[0])
	}
}

// Generate creates a fresh key of the given algorithm.
func Generate(alg Algorithm) (*PrivateKey, error) {
	switch alg {
	case AlgEd25519:
		seed := make([]byte, seedLen)
		if _, err := rand.Read(seed); err != nil {
			return nil, err
		}
		return &PrivateKey{alg: AlgEd25519, ed: ed25519.NewKeyFromSeed(seed)}, nil
	case AlgSecp256k1:
		k, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		return &PrivateKey{alg: AlgSecp256k1, secp: crypto.FromECDSA(k)}, nil
	}
	return nil, fmt.Errorf("unknown algorithm %#02x", byte(alg))
}

// PublicKey returns the tagged public half.
func (k *PrivateKey) PublicKey() PublicKey {
	switch k.alg {
	case AlgEd25519:
		pub := k.ed.Public().(ed25519.PublicKey)
		return PublicKey{Alg: AlgEd25519, Bytes: append([]byte(nil), pub...)}
	case AlgSecp256k1:
		ecdsaKey, _ := crypto.ToECDSA(k.secp)
		return PublicKey{Alg: AlgSecp256k1, Bytes: crypto.CompressPubkey(&ecdsaKey.PublicKey)}
	}
	return PublicKey{}
}

// Sign signs a 32-byte digest. Ed25519 signs the digest directly; secp256k1
// produces a 64-byte R||S signature.
func (k *PrivateKey) Sign(digest []byte) ([]byte, error) {
	switch k.alg {
	case AlgEd25519:
		return ed25519.Sign(k.ed, digest), nil
	case AlgSecp256k1:
		ecdsaKey, err := crypto.ToECDSA(k.secp)
		if err != nil {
			return nil, err
		}
		sig, err := crypto.Sign(digest, ecdsaKey)
		if err != nil {
			return nil, err
		}
		return sig[:64], nil
	}
	return nil, fmt.Errorf("unknown algorithm %#02x", byte(k.alg))
}
