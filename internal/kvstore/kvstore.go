package kvstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("key not found")

// Key-value store with expiring keys
type Store interface {
	// Get value by key
	// Must return ErrNotFound if key is absent or expired
	Get(ctx context.Context, key string) (string, error)

	// Set value; zero ttl means the key never expires
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete keys, absent keys are ignored
	Delete(ctx context.Context, keys ...string) error

	// Run fn with a fresh batch
	// If fn returns nil all queued mutations are applied at once, otherwise none of them
	InPipeline(ctx context.Context, fn func(Pipeline) error) error
}

// Batch of mutations bound to one InPipeline call
// Reads are not queued: they go to the store immediately
type Pipeline interface {
	Get(ctx context.Context, key string) (string, error)

	Set(key string, value string, ttl time.Duration)
	Delete(keys ...string)
}
