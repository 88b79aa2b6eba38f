// Package sqlite implements the cache facade on a local SQLite database.
//
// It exists for single-node gateway deployments that want the connection
// mappings to survive a process restart without operating a Redis. The
// store is not shared between nodes; a clustered deployment must use the
// Redis backend.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/conduitiot/conduit-connection/internal/cache"
	"github.com/conduitiot/conduit-connection/internal/infrastructure/config"
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second
)

// schema holds the entries table. Created on Open when missing.
const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key     TEXT PRIMARY KEY,
	value   TEXT NOT NULL,
	version TEXT NOT NULL
);`

// Store is a cache.Cache backed by a local SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates a new SQLite-backed store with the specified configuration.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database file (creates if not present)
//  3. Configures WAL mode and busy timeout
//  4. Verifies the connection and creates the schema
//  5. Sets appropriate file permissions (0600)
//
// Parameters:
//   - cfg: SQLite configuration from config.yaml
//
// Returns:
//   - *Store: Connected store ready for use
//   - error: If connection or schema setup fails
func Open(cfg config.SQLiteConfig) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Build connection string with pragmas
	// See: https://github.com/mattn/go-sqlite3#connection-string
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite supports a single writer; keep the pool at one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Owner read/write only. Best effort: a failure is ignored and the
	// permissions are not applied again later.
	_ = os.Chmod(cfg.Path, filePermissions)

	return &Store{db: db, path: cfg.Path}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (s *Store) Path() string {
	return s.path
}

// Put stores value under key with a fresh version.
func (s *Store) Put(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO cache_entries (key, value, version)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = excluded.version`

	if _, err := s.db.ExecContext(ctx, query, key, value, uuid.NewString()); err != nil {
		return fmt.Errorf("sqlite put: %w", err)
	}
	return nil
}

// Get returns the value for key, or false when absent.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cache_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite get: %w", err)
	}
	return value, true, nil
}

// GetAll returns the values for every present key in a single query.
// Absent keys are omitted from the result.
func (s *Store) GetAll(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	placeholders := strings.Repeat("?,", len(keys))
	placeholders = placeholders[:len(placeholders)-1]
	query := `SELECT key, value FROM cache_entries WHERE key IN (` + placeholders + `)`

	args := make([]interface{}, len(keys))
	for i, key := range keys {
		args[i] = key
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite get all: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	result := make(map[string]string, len(keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("sqlite get all: scanning row: %w", err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite get all: %w", err)
	}
	return result, nil
}

// GetWithVersion returns the value and version for key, or false when absent.
func (s *Store) GetWithVersion(ctx context.Context, key string) (cache.Versioned, bool, error) {
	var v cache.Versioned
	err := s.db.QueryRowContext(ctx,
		`SELECT value, version FROM cache_entries WHERE key = ?`, key,
	).Scan(&v.Value, &v.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Versioned{}, false, nil
	}
	if err != nil {
		return cache.Versioned{}, false, fmt.Errorf("sqlite get with version: %w", err)
	}
	return v, true, nil
}

// RemoveWithVersion removes key if its current version equals version.
// The version comparison happens inside the DELETE, so the check and the
// removal are a single statement.
func (s *Store) RemoveWithVersion(ctx context.Context, key, version string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE key = ? AND version = ?`, key, version)
	if err != nil {
		return false, fmt.Errorf("sqlite remove with version: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite remove with version: %w", err)
	}
	return affected > 0, nil
}

// CheckAvailability runs a trivial query and reports entry statistics.
func (s *Store) CheckAvailability(ctx context.Context) (cache.Stats, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return nil, fmt.Errorf("sqlite availability check: %w", err)
	}

	stats := s.db.Stats()
	return cache.Stats{
		"backend":          "sqlite",
		"entries":          strconv.FormatInt(count, 10),
		"open_connections": strconv.Itoa(stats.OpenConnections),
	}, nil
}

// HealthCheck verifies the database is accessible and functioning.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Store) HealthCheck(ctx context.Context) error {
	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("sqlite health check failed: %w", err)
	}
	return nil
}
