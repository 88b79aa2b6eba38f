// Package embedded provides an in-process implementation of the cache
// facade. It holds all entries in a mutex-guarded map and exists for
// single-node deployments that need no external store, and for tests.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
package embedded

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/conduitiot/conduit-connection/internal/cache"
)

// entry is a stored value and the version assigned when it was written.
type entry struct {
	value   string
	version string
}

// Store is an in-process cache.Cache backed by a map.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty in-process store.
func New() *Store {
	return &Store{
		entries: make(map[string]entry),
	}
}

// Put stores value under key with a fresh version.
func (s *Store) Put(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("embedded put: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{value: value, version: uuid.NewString()}
	return nil
}

// Get returns the value for key, or false when absent.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("embedded get: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

// GetAll returns the values for every present key. Absent keys are omitted.
func (s *Store) GetAll(ctx context.Context, keys []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("embedded get all: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if e, ok := s.entries[key]; ok {
			result[key] = e.value
		}
	}
	return result, nil
}

// GetWithVersion returns the value and version for key, or false when absent.
func (s *Store) GetWithVersion(ctx context.Context, key string) (cache.Versioned, bool, error) {
	if err := ctx.Err(); err != nil {
		return cache.Versioned{}, false, fmt.Errorf("embedded get with version: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return cache.Versioned{}, false, nil
	}
	return cache.Versioned{Value: e.value, Version: e.version}, true, nil
}

// RemoveWithVersion removes key if its current version equals version.
func (s *Store) RemoveWithVersion(ctx context.Context, key, version string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("embedded remove with version: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.version != version {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// CheckAvailability reports the entry count. An in-process map is always
// available; the statistics exist to satisfy readiness reporting.
func (s *Store) CheckAvailability(ctx context.Context) (cache.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("embedded availability check: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return cache.Stats{
		"backend": "embedded",
		"entries": strconv.Itoa(len(s.entries)),
	}, nil
}
