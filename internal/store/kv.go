// Package store defines the key-addressed durable store the crawl
// engine persists into. Keys are slash-separated paths; the engine
// relies only on read-your-writes consistency for a single writer.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("store: key not found")

// KV is a key-addressed blob store with prefix listing.
type KV interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes value at key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// List returns all keys with the given prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
}
