package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/proofwatch/proofwatch/core"
	"github.com/proofwatch/proofwatch/ports"
)

// RedisStore is the extension-scoped backend analog: shared across every
// process pointed at the same Redis, with change notification carried over
// pub/sub alongside each write.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "proofwatch:kv:",
	}
}

var _ ports.Store = (*RedisStore)(nil)

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.SetTTL(ctx, key, value, 0)
}

func (s *RedisStore) SetTTL(ctx context.Context, key, value string, ttlSeconds int64) error {
	ttl := time.Duration(ttlSeconds) * time.Second
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	// Notify watchers in every process sharing this backend. Best effort: the
	// write itself already succeeded.
	s.client.Publish(ctx, s.changeChannel(key), value)
	return nil
}

func (s *RedisStore) Watch(ctx context.Context, key string, fn func(value string)) (cancel func()) {
	watchCtx, stop := context.WithCancel(ctx)
	pubsub := s.client.Subscribe(watchCtx, s.changeChannel(key))

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-watchCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fn(msg.Payload)
			}
		}
	}()

	return func() {
		stop()
		_ = pubsub.Close()
	}
}

func (s *RedisStore) changeChannel(key string) string {
	return s.prefix + "changes:" + key
}
