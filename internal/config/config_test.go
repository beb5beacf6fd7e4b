package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromEnv(mapEnv{
		"SIGNING_KEY_PATH": "/keys/signer.key",
		"CONTRACT_HASH":    "hash-abc",
	})
	require.NoError(t, err)
	assert.Equal(t, 3001, cfg.Port)
	assert.Equal(t, "casper-test", cfg.ChainName)
	assert.Equal(t, "http://localhost:11101/rpc", cfg.NodeURL)
	assert.Equal(t, "5000000000", cfg.PaymentAmount.String())
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadRequiredFields(t *testing.T) {
	_, err := LoadFromEnv(mapEnv{"CONTRACT_HASH": "hash-abc"})
	require.ErrorContains(t, err, "SIGNING_KEY_PATH")

	_, err = LoadFromEnv(mapEnv{"SIGNING_KEY_PATH": "/keys/signer.key"})
	require.ErrorContains(t, err, "CONTRACT_HASH")

	// The token key must be shared between processes on the same stream.
	_, err = LoadFromEnv(mapEnv{
		"SIGNING_KEY_PATH": "/keys/signer.key",
		"CONTRACT_HASH":    "hash-abc",
		"REDIS_URL":        "redis://localhost:6379/0",
	})
	require.ErrorContains(t, err, "SESSION_KEY_PATH")
}

func TestLoadOverridesAndValidation(t *testing.T) {
	cfg, err := LoadFromEnv(mapEnv{
		"SIGNING_KEY_PATH": "/keys/signer.key",
		"CONTRACT_HASH":    "hash-abc",
		"PORT":             "9090",
		"CHAIN_NAME":       "casper",
		"PAYMENT_AMOUNT":   "10000000000",
		"REDIS_URL":        "redis://localhost:6379/0",
		"SESSION_KEY_PATH": "/keys/session.pem",
	})
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "casper", cfg.ChainName)
	assert.Equal(t, "10000000000", cfg.PaymentAmount.String())
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "/keys/session.pem", cfg.SessionKeyPath)

	base := mapEnv{
		"SIGNING_KEY_PATH": "/keys/signer.key",
		"CONTRACT_HASH":    "hash-abc",
	}

	base["PORT"] = "0"
	_, err = LoadFromEnv(base)
	require.ErrorContains(t, err, "PORT")
	delete(base, "PORT")

	base["PAYMENT_AMOUNT"] = "-1"
	_, err = LoadFromEnv(base)
	require.ErrorContains(t, err, "PAYMENT_AMOUNT")
}
