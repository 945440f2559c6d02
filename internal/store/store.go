// Package store owns the embedded relational database: connection setup,
// pragmas, the forward-only migration runner, and per-user application-data
// directory discovery. Everything above the raw *sql.DB lives in
// internal/repository.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// appDirName is the product-named subdirectory created under the OS's
// per-user application-data directory.
const appDirName = "StreamForge"

// dbFileName is the single embedded database file name, per the persisted
// state layout: one relational database file plus sibling sounds/images
// directories used by upload collaborators (outside this package's scope).
const dbFileName = "streamforge.db"

// Store wraps the opened database handle. The single-writer concurrency
// model is enforced by constraining the pool to one open connection, the
// same approach the agent's SQLite-backed queue uses for serialized writes.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// DefaultDataDir resolves the OS-appropriate per-user application-data
// directory (Windows roaming app-data, macOS Application Support, XDG
// config on Linux) under a product-named subdirectory, creating it
// recursively if missing. No third-party library in the retrieval pack
// covers this cross-platform convention, so it is implemented directly on
// os.UserConfigDir, which already encodes the platform-specific rules.
func DefaultDataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("store: resolve user config dir: %w", err)
	}
	dir := filepath.Join(base, appDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: create data dir %q: %w", dir, err)
	}
	return dir, nil
}

// Open opens (creating if absent) the database file under dataDir, applies
// pragmas, and runs any unapplied migrations. dataDir == ":memory:" opens an
// in-memory database, used by tests.
func Open(dataDir string, logger *slog.Logger) (*Store, error) {
	path := dataDir
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create data dir %q: %w", dataDir, err)
		}
		path = filepath.Join(dataDir, dbFileName)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}

	// SQLite allows only one writer at a time; a single pooled connection
	// serializes every write through the driver rather than racing callers
	// against "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA synchronous = NORMAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set synchronous = NORMAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// DB returns the underlying *sql.DB for use by the repository layer.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// migrate creates the _migrations tracking table if absent, then applies
// every unapplied script under migrations/ in lexicographic order, each
// inside its own transaction with foreign-key enforcement disabled so the
// script is free to alter schema that FK constraints would otherwise block.
// A script failure rolls back its transaction, restores FK enforcement, and
// is fatal: no further scripts are attempted.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS _migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)`); err != nil {
		return fmt.Errorf("create _migrations table: %w", err)
	}

	names, err := scriptNames()
	if err != nil {
		return err
	}

	for _, name := range names {
		var applied int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM _migrations WHERE filename = ?`, name).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %q: %w", name, err)
		}
		if applied > 0 {
			continue
		}
		if err := s.applyScript(name); err != nil {
			return fmt.Errorf("apply migration %q: %w", name, err)
		}
		if s.logger != nil {
			s.logger.Info("store: applied migration", slog.String("filename", name))
		}
	}
	return nil
}

// applyScript runs a single migration file inside one transaction, with
// foreign-key enforcement disabled for the duration (SQLite forbids
// disabling FK enforcement inside an active transaction, so it is toggled
// outside of it on either side).
func (s *Store) applyScript(name string) error {
	if _, err := s.db.Exec(`PRAGMA foreign_keys = OFF`); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	defer func() {
		_, _ = s.db.Exec(`PRAGMA foreign_keys = ON`)
	}()

	raw, err := migrationFiles.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if _, err := tx.Exec(string(raw)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec script: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO _migrations (filename) VALUES (?)`, name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// scriptNames returns the embedded migration filenames in lexicographic
// order, matching the well-known-location-and-ordering contract.
func scriptNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
