package redis

import "errors"

// Domain-specific errors for the Redis cache backend.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("redis: connection failed")

	// ErrNotAvailable is returned by CheckAvailability when the server
	// cannot be reached or queried.
	ErrNotAvailable = errors.New("redis: not available")
)
