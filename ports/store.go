package ports

import "context"

// Store is durable key-value persistence scoped to one execution context's
// backend. Watch observes changes made by any holder of the same backend,
// including other processes.
type Store interface {
	// Get retrieves a value by key. Returns core.ErrNotFound when the key is
	// absent and core.ErrStorageUnavailable when the backend cannot be reached.
	Get(ctx context.Context, key string) (string, error)

	// Set overwrites a key atomically from the caller's perspective.
	Set(ctx context.Context, key, value string) error

	// SetTTL is Set with an expiry, used for short-lived records such as
	// idempotency windows. A zero ttl behaves like Set.
	SetTTL(ctx context.Context, key, value string, ttlSeconds int64) error

	// Watch registers fn to be invoked with the new value whenever key
	// changes. Delivery is eventual, after the write completes; no ordering
	// is promised beyond that. The returned function cancels the watch.
	Watch(ctx context.Context, key string, fn func(value string)) (cancel func())
}
