package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proofwatch/proofwatch/core"
)

func writeKeyFile(t *testing.T, blockType string, der []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadSigningKeySEC1(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	loaded, err := LoadSigningKey(writeKeyFile(t, "EC PRIVATE KEY", der))
	require.NoError(t, err)
	assert.Equal(t, 0, key.D.Cmp(loaded.D))
}

func TestLoadSigningKeyPKCS8(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	loaded, err := LoadSigningKey(writeKeyFile(t, "PRIVATE KEY", der))
	require.NoError(t, err)
	assert.Equal(t, 0, key.D.Cmp(loaded.D))
}

func TestLoadedKeysInteroperate(t *testing.T) {
	// A token minted by one process verifies in another loading the same file.
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	path := writeKeyFile(t, "EC PRIVATE KEY", der)

	keyA, err := LoadSigningKey(path)
	require.NoError(t, err)
	keyB, err := LoadSigningKey(path)
	require.NoError(t, err)

	session := &core.Session{
		Connected: true,
		Account:   core.Account{Address: "0203abc", Network: "casper-test"},
		UpdatedAt: 1000,
	}
	token, err := NewJWTTokenizer(keyA).SessionToToken(session)
	require.NoError(t, err)

	got, err := NewJWTTokenizer(keyB).TokenToSession(token)
	require.NoError(t, err)
	assert.Equal(t, session.Account, got.Account)
}

func TestLoadSigningKeyFailures(t *testing.T) {
	_, err := LoadSigningKey(filepath.Join(t.TempDir(), "missing.pem"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))
	_, err = LoadSigningKey(path)
	require.ErrorContains(t, err, "PEM")

	_, err = LoadSigningKey(writeKeyFile(t, "CERTIFICATE", []byte{0x01}))
	require.ErrorContains(t, err, "unsupported PEM block")
}
