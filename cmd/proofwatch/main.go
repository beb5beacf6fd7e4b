package main

import (
	"context"
	"fmt"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/proofwatch/proofwatch/adapters/chain"
	"github.com/proofwatch/proofwatch/adapters/store"
	"github.com/proofwatch/proofwatch/adapters/tokenizer"
	"github.com/proofwatch/proofwatch/adapters/transport"
	"github.com/proofwatch/proofwatch/core"
	"github.com/proofwatch/proofwatch/internal/config"
	"github.com/proofwatch/proofwatch/internal/keys"
	"github.com/proofwatch/proofwatch/ports"
	"github.com/proofwatch/proofwatch/service"
	httptransport "github.com/proofwatch/proofwatch/transport/http"
)

func main() {
	// A .env file is a convenience for local runs; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	// The signing key is the one thing the relay cannot serve without.
	signer, err := keys.Load(cfg.SigningKeyPath)
	if err != nil {
		log.Fatalf("Failed to load signing key from %s: %v", cfg.SigningKeyPath, err)
	}
	log.Printf("Signer public key: %s", signer.PublicKey().Hex())

	ctx := context.Background()

	chainClient, err := chain.Dial(ctx, cfg.NodeURL)
	if err != nil {
		log.Fatalf("Failed to reach chain node at %s: %v", cfg.NodeURL, err)
	}
	defer chainClient.Close()

	// Redis is optional: it adds the cross-process session store, the stream
	// transport, and a durable idempotency window. Without it the relay still
	// serves mints, with in-process state only.
	var relayStore ports.Store = store.NewMemoryStore()
	logger := watermill.NewStdLogger(false, false)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse REDIS_URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		relayStore = store.NewRedisStore(redisClient)

		streamTransport, err := transport.NewRedisStream(redisClient, "relay", logger)
		if err != nil {
			log.Fatalf("Failed to create Redis stream transport: %v", err)
		}

		// Session pushes crossing process boundaries are signed; every relay
		// process on the stream loads the same key so peer tokens verify.
		sessionKey, err := tokenizer.LoadSigningKey(cfg.SessionKeyPath)
		if err != nil {
			log.Fatalf("Failed to load session token key from %s: %v", cfg.SessionKeyPath, err)
		}

		bridge := service.NewBridge("relay", relayStore, []ports.Transport{streamTransport},
			service.WithTokenizer(tokenizer.NewJWTTokenizer(sessionKey)))
		bridge.OnSessionChange(func(session core.Session) {
			if session.Connected {
				log.Printf("Session connected: %s on %s", session.Account.Address, session.Account.Network)
			} else {
				log.Printf("Session disconnected")
			}
		})
		if err := bridge.Start(ctx); err != nil {
			log.Fatalf("Failed to start bridge context: %v", err)
		}
		defer bridge.Close()
	}

	mintService := service.NewMintService(signer, chainClient, relayStore, service.MintConfig{
		ContractHash:  cfg.ContractHash,
		ChainName:     cfg.ChainName,
		PaymentAmount: cfg.PaymentAmount,
	})

	router := httptransport.SetupRouter(mintService)

	log.Printf("proofwatch relay listening on :%d (chain %s, contract %s)", cfg.Port, cfg.ChainName, cfg.ContractHash)
	if err := router.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
