package tokenizer

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// LoadSigningKey reads a PEM-encoded ECDSA private key for session tokens.
// Both SEC1 ("EC PRIVATE KEY") and PKCS#8 ("PRIVATE KEY") encodings are
// accepted. Relay processes sharing a stream transport must load the same
// key, otherwise tokens minted by one process never verify in another.
func LoadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("session key file %s holds no PEM block", path)
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse session key: %w", err)
		}
		key, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("session key must be ECDSA, got %T", parsed)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q in session key file", block.Type)
	}
}
