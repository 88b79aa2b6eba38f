// Package cache defines the key/value store facade the connection registry
// is programmed against, and hosts its backend implementations.
//
// The registry never talks to a store client directly; it sees only the
// Cache interface. This keeps the resolver logic independent of the
// deployment's store choice and lets tests substitute a counting mock.
//
// # Backends
//
//   - cache/redis: remote store on a shared Redis, the production backend
//   - cache/sqlite: persistent embedded store for single-node gateways
//   - cache/embedded: in-process map, for tests and throwaway deployments
//
// All backends assign each entry an opaque version token on write. The
// token drives the registry's remove-if-version-matches protocol; no other
// meaning may be attached to it.
package cache
