package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/probeworks/smokecore/internal/client"
)

// Store configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// connMaxIdleTime is how long idle connections are kept open.
	connMaxIdleTime = 30 * time.Minute
)

// ErrNotFound is returned when no override exists for a kind/name pair.
var ErrNotFound = errors.New("configstore: no config for client")

// schema holds the override table. One row per client instance.
const schema = `
CREATE TABLE IF NOT EXISTS client_configs (
    kind       TEXT NOT NULL,
    name       TEXT NOT NULL,
    config     TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (kind, name)
);
`

// Store wraps a sql.DB connection holding client configuration overrides.
type Store struct {
	db   *sql.DB
	path string
}

// Config contains store configuration options.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// The directory will be created if it doesn't exist.
	Path string

	// WALMode enables Write-Ahead Logging for better concurrent access.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int
}

// Open creates the store, applying pragmas and creating the schema.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database file (creates if not present)
//  3. Configures WAL mode and busy timeout
//  4. Verifies the connection with a ping and creates the schema
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
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
	db.SetConnMaxIdleTime(connMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, path: cfg.Path}, nil
}

// Get returns the stored settings for a client, or ErrNotFound.
func (s *Store) Get(ctx context.Context, kind client.Kind, name string) (client.Settings, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT config FROM client_configs WHERE kind = ? AND name = ?`,
		string(kind), name,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading client config: %w", err)
	}

	var settings client.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return nil, fmt.Errorf("decoding client config: %w", err)
	}
	return settings, nil
}

// Put stores (or replaces) the settings for a client.
func (s *Store) Put(ctx context.Context, kind client.Kind, name string, settings client.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding client config: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO client_configs (kind, name, config, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (kind, name) DO UPDATE SET config = excluded.config, updated_at = CURRENT_TIMESTAMP`,
		string(kind), name, string(raw),
	)
	if err != nil {
		return fmt.Errorf("writing client config: %w", err)
	}
	return nil
}

// Delete removes the stored settings for a client. Missing rows are not an
// error.
func (s *Store) Delete(ctx context.Context, kind client.Kind, name string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM client_configs WHERE kind = ? AND name = ?`,
		string(kind), name,
	); err != nil {
		return fmt.Errorf("deleting client config: %w", err)
	}
	return nil
}

// List returns the instance names stored for a kind.
func (s *Store) List(ctx context.Context, kind client.Kind) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM client_configs WHERE kind = ? ORDER BY name`,
		string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("listing client configs: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning client config row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating client configs: %w", err)
	}
	return names, nil
}

// HealthCheck verifies the store is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}
