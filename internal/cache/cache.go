package cache

import "context"

// Cache is the capability set the connection registry requires from a
// key/value store. Implementations exist for Redis (production), SQLite
// (persistent single-node) and an in-process map (tests, embedded mode).
//
// Absence of a key is never an error: Get and GetWithVersion report it via
// the boolean return, and GetAll simply omits absent keys from its result.
// Errors indicate a store-level failure (transport, backend, timeout).
type Cache interface {
	// Put unconditionally stores value under key, replacing any previous
	// entry and assigning it a fresh version.
	Put(ctx context.Context, key, value string) error

	// Get returns the current value for key. The boolean is false when no
	// entry exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// GetAll returns the values for every present key in keys. Absent keys
	// are left out of the result map; they do not cause an error. The
	// lookup is issued as a single round trip to the store.
	GetAll(ctx context.Context, keys []string) (map[string]string, error)

	// GetWithVersion returns the current value together with its version
	// token. The boolean is false when no entry exists. Version tokens are
	// opaque and comparable for equality only.
	GetWithVersion(ctx context.Context, key string) (Versioned, bool, error)

	// RemoveWithVersion removes the entry for key if, and only if, its
	// current version equals version. It returns false when the entry was
	// concurrently replaced or removed.
	RemoveWithVersion(ctx context.Context, key, version string) (bool, error)

	// CheckAvailability probes the store and returns backend statistics.
	// Used by readiness checks.
	CheckAvailability(ctx context.Context) (Stats, error)
}

// Versioned pairs a stored value with the opaque version token assigned by
// the store when the value was written.
type Versioned struct {
	Value   string
	Version string
}

// Stats holds backend statistics reported by CheckAvailability. Keys and
// values are backend-specific; callers treat them as opaque metadata.
type Stats map[string]string
