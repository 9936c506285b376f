package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Empty database
// 1 - transactions, carts, customers (schema.sql)
// 2 - menu_snapshots table, customers email index, transactions.synced_at
const currentSchemaVersion = 2

// Store is the durable local store for the POS terminal.
// Uses SQLite with WAL mode and a single connection, so every write is
// serialized and atomic at the single-record level.
type Store struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// Opening is idempotent: a database already at the current schema version is
// left untouched, an older one is migrated exactly once.
//
// Missing parent directories of a file path are created.
//
// Any failure is reported as a StorageUnavailable *Error; callers should fall
// back to online-only operation.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, unavailable("open", fmt.Errorf("failed to create database directory: %w", err))
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, unavailable("open", fmt.Errorf("failed to open database: %w", err))
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, unavailable("open", fmt.Errorf("failed to connect to database: %w", err))
	}

	// SQLite only supports one writer at a time; one connection also gives
	// per-record write serialization across goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, unavailable("open", fmt.Errorf("failed to apply pragmas: %w", err))
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, unavailable("open", fmt.Errorf("failed to apply schema: %w", err))
	}

	return &Store{db: db, path: path}, nil
}

// ensureDir creates the directory holding a file path. In-memory databases
// and file: URIs are left to the driver.
func ensureDir(path string) error {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// Close closes the database connection.
// Every operation after Close fails with StorageUnavailable.
func (s *Store) Close() error {
	if s.db == nil || s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SchemaVersion reports the schema version recorded in the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	if err := s.ready("schema version"); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, classify("schema version", "", "", err)
	}
	return version, nil
}

// ready fails fast when the handle is unusable.
func (s *Store) ready(op string) error {
	if s == nil || s.db == nil || s.closed.Load() {
		return unavailable(op, errClosed)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the base tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// migration upgrades the schema from version-1 to version.
type migration struct {
	version int
	stmts   []string
}

var migrations = []migration{
	{version: 1}, // schema.sql
	{version: 2, stmts: []string{
		`CREATE TABLE IF NOT EXISTS menu_snapshots (
			id          TEXT    PRIMARY KEY,
			captured_at INTEGER NOT NULL,
			data        TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_customers_email ON customers(email)`,
		`ALTER TABLE transactions ADD COLUMN synced_at INTEGER`,
	}},
}

// runMigrations applies incremental schema migrations based on user_version.
// Each step runs in its own transaction together with the version bump, so a
// crash mid-migration never leaves a half-applied version behind.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
		version = m.version
	}

	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v%d: begin: %w", m.version, err)
	}
	defer tx.Rollback() // No-op if committed

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("migrate to v%d: set user_version: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate to v%d: commit: %w", m.version, err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
