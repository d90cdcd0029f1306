// Package memory provides an in-memory KV store for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/brisketlabs/crawld/internal/store"
)

// KV stores values in a map guarded by a RWMutex.
type KV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty in-memory KV store.
func New() *KV {
	return &KV{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (s *KV) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

// Put stores a copy of value at key.
func (s *KV) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

// List returns sorted keys with the given prefix.
func (s *KV) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
