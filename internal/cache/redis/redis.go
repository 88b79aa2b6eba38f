// Package redis implements the cache facade on a shared Redis instance.
// This is the production backend: every adapter instance and management
// node of a deployment points at the same Redis, which is what makes the
// registry's answers cluster-wide.
//
// Entries are stored as small hashes with a "value" field and a "version"
// field. The version is rewritten on every put and compared inside a Lua
// script on conditional removal, which gives the compare-and-delete the
// atomicity the registry's removal protocol requires.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/conduitiot/conduit-connection/internal/cache"
	"github.com/conduitiot/conduit-connection/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for the initial ping.
	defaultConnectTimeout = 5 * time.Second
)

// Hash field names for stored entries.
const (
	fieldValue   = "value"
	fieldVersion = "version"
)

// removeScript deletes an entry only when its version still matches.
// Running the comparison inside Redis makes the check-and-delete atomic
// with respect to concurrent puts.
var removeScript = goredis.NewScript(`
if redis.call("HGET", KEYS[1], "version") == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

// Store is a cache.Cache backed by a remote Redis.
type Store struct {
	client *goredis.Client
}

// Connect establishes a connection to the Redis server.
//
// It builds the client from config (address, auth, database, pool sizing)
// and verifies connectivity with a ping before returning.
//
// Parameters:
//   - ctx: Context for the connection verification
//   - cfg: Redis configuration from config.yaml
//
// Returns:
//   - *Store: Connected store ready for use
//   - error: If the initial ping fails
func Connect(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &Store{client: client}, nil
}

// NewFromClient wraps an existing Redis client. Used by tests that point
// the store at an in-process server.
func NewFromClient(client *goredis.Client) *Store {
	return &Store{client: client}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("closing redis client: %w", err)
	}
	return nil
}

// Put stores value under key with a fresh version.
func (s *Store) Put(ctx context.Context, key, value string) error {
	err := s.client.HSet(ctx, key,
		fieldValue, value,
		fieldVersion, uuid.NewString(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

// Get returns the value for key, or false when absent.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, key, fieldValue).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

// GetAll returns the values for every present key. The individual reads
// are pipelined so the whole lookup is a single round trip. Absent keys
// are omitted from the result.
func (s *Store) GetAll(ctx context.Context, keys []string) (map[string]string, error) {
	pipe := s.client.Pipeline()
	cmds := make(map[string]*goredis.StringCmd, len(keys))
	for _, key := range keys {
		cmds[key] = pipe.HGet(ctx, key, fieldValue)
	}

	// Exec reports the first command error, which for absent keys is the
	// benign redis.Nil. Real failures surface per-command below.
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return nil, fmt.Errorf("redis get all: %w", err)
	}

	result := make(map[string]string, len(keys))
	for key, cmd := range cmds {
		value, err := cmd.Result()
		if err == goredis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get all: %w", err)
		}
		result[key] = value
	}
	return result, nil
}

// GetWithVersion returns the value and version for key, or false when absent.
func (s *Store) GetWithVersion(ctx context.Context, key string) (cache.Versioned, bool, error) {
	vals, err := s.client.HMGet(ctx, key, fieldValue, fieldVersion).Result()
	if err != nil {
		return cache.Versioned{}, false, fmt.Errorf("redis get with version: %w", err)
	}
	if vals[0] == nil || vals[1] == nil {
		return cache.Versioned{}, false, nil
	}

	value, ok := vals[0].(string)
	if !ok {
		return cache.Versioned{}, false, fmt.Errorf("redis get with version: unexpected value type %T", vals[0])
	}
	version, ok := vals[1].(string)
	if !ok {
		return cache.Versioned{}, false, fmt.Errorf("redis get with version: unexpected version type %T", vals[1])
	}
	return cache.Versioned{Value: value, Version: version}, true, nil
}

// RemoveWithVersion removes key if its current version equals version.
func (s *Store) RemoveWithVersion(ctx context.Context, key, version string) (bool, error) {
	removed, err := removeScript.Run(ctx, s.client, []string{key}, version).Int()
	if err != nil {
		return false, fmt.Errorf("redis remove with version: %w", err)
	}
	return removed == 1, nil
}

// CheckAvailability pings the server and reports backend statistics.
func (s *Store) CheckAvailability(ctx context.Context) (cache.Stats, error) {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAvailable, err)
	}

	dbSize, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAvailable, err)
	}

	poolStats := s.client.PoolStats()
	return cache.Stats{
		"backend":          "redis",
		"keys":             strconv.FormatInt(dbSize, 10),
		"pool_hits":        strconv.FormatUint(uint64(poolStats.Hits), 10),
		"pool_misses":      strconv.FormatUint(uint64(poolStats.Misses), 10),
		"pool_total_conns": strconv.FormatUint(uint64(poolStats.TotalConns), 10),
		"pool_idle_conns":  strconv.FormatUint(uint64(poolStats.IdleConns), 10),
	}, nil
}

// HealthCheck verifies the Redis connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
