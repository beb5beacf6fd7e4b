package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

// Config holds the relay's runtime configuration, read from the environment.
type Config struct {
	Port           int
	SigningKeyPath string
	ContractHash   string
	ChainName      string
	NodeURL        string
	PaymentAmount  decimal.Decimal // motes
	RedisURL       string          // empty disables the shared store and stream transport
	SessionKeyPath string          // ES256 key signing session tokens; required with RedisURL
	GinMode        string
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func Load() (Config, error) {
	return LoadFromEnv(osEnv{})
}

func LoadFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:          3001,
		ChainName:     "casper-test",
		NodeURL:       "http://localhost:11101/rpc",
		PaymentAmount: decimal.NewFromInt(5_000_000_000),
		GinMode:       "release",
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.SigningKeyPath = env.Getenv("SIGNING_KEY_PATH")
	if cfg.SigningKeyPath == "" {
		return Config{}, fmt.Errorf("SIGNING_KEY_PATH is required")
	}

	cfg.ContractHash = env.Getenv("CONTRACT_HASH")
	if cfg.ContractHash == "" {
		return Config{}, fmt.Errorf("CONTRACT_HASH is required")
	}

	if raw := env.Getenv("CHAIN_NAME"); raw != "" {
		cfg.ChainName = raw
	}
	if raw := env.Getenv("NODE_URL"); raw != "" {
		cfg.NodeURL = raw
	}
	if raw := env.Getenv("PAYMENT_AMOUNT"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil || amount.IsNegative() || amount.IsZero() {
			return Config{}, fmt.Errorf("invalid PAYMENT_AMOUNT")
		}
		cfg.PaymentAmount = amount
	}

	cfg.RedisURL = env.Getenv("REDIS_URL")
	cfg.SessionKeyPath = env.Getenv("SESSION_KEY_PATH")
	if cfg.RedisURL != "" && cfg.SessionKeyPath == "" {
		// Cross-process session pushes are signed; every relay process must
		// verify tokens minted by its peers, so the key has to be shared.
		return Config{}, fmt.Errorf("SESSION_KEY_PATH is required when REDIS_URL is set")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	return cfg, nil
}
