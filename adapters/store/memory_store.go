package store

import (
	"context"
	"sync"
	"time"

	"github.com/proofwatch/proofwatch/core"
	"github.com/proofwatch/proofwatch/ports"
)

// MemoryStore is the origin-scoped backend: process-local, change
// notification reaches only watchers registered in this process.
type MemoryStore struct {
	mu       sync.RWMutex
	values   map[string]string
	expiries map[string]time.Time
	watchers map[string]map[int]func(string)
	nextID   int
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string]string),
		expiries: make(map[string]time.Time),
		watchers: make(map[string]map[int]func(string)),
	}
}

var _ ports.Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[key]
	if !ok {
		return "", core.ErrNotFound
	}
	if expiry, exists := s.expiries[key]; exists && time.Now().After(expiry) {
		// Expired entries are purged on read so TTL-stamped keys do not pile
		// up for the process lifetime.
		delete(s.values, key)
		delete(s.expiries, key)
		return "", core.ErrNotFound
	}
	return value, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	return s.SetTTL(ctx, key, value, 0)
}

func (s *MemoryStore) SetTTL(ctx context.Context, key, value string, ttlSeconds int64) error {
	s.mu.Lock()
	s.values[key] = value
	if ttlSeconds > 0 {
		s.expiries[key] = time.Now().Add(time.Duration(ttlSeconds) * time.Second)
	} else {
		delete(s.expiries, key)
	}
	fns := make([]func(string), 0, len(s.watchers[key]))
	for _, fn := range s.watchers[key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	// Delivery is eventual, after the write completes.
	for _, fn := range fns {
		go fn(value)
	}
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context, key string, fn func(value string)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watchers[key] == nil {
		s.watchers[key] = make(map[int]func(string))
	}
	id := s.nextID
	s.nextID++
	s.watchers[key][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers[key], id)
		if len(s.watchers[key]) == 0 {
			delete(s.watchers, key)
		}
	}
}
