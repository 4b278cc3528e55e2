// Package store provides the durable local store for kidscard data.
//
// The store is an embedded SQLite database holding four collections:
// categories, flashcards, settings, and images. It is the single source of
// truth for persisted state; everything in memory is a cache of it.
//
// The store is defensive about its own schema. Every read and write is
// wrapped so that a "no such table" failure (first run, or a corrupted
// partial upgrade) provisions the missing tables and retries the operation
// exactly once before surfacing the error. First reads seed collection
// defaults, and legacy non-UUID identifiers are migrated in place.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection with collection-level operations.
type Store struct {
	conn   *sql.DB
	path   string
	logger *log.Logger

	mu       sync.Mutex
	migrated bool // set when legacy ids were rewritten, consumed once
	seeded   bool
}

// Open creates a database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist it is created along with the schema.
// The caller MUST call Close() when done.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn:   conn,
		path:   path,
		logger: logger,
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	if err := s.InitSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// RawDB returns the underlying sql.DB connection, for integrations that
// expect one.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// InitSchema creates the collections if they don't exist. Idempotent.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		icon TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT 'blue',
		position INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE TABLE IF NOT EXISTS flashcards (
		id TEXT PRIMARY KEY,
		word TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		category_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		autoplay INTEGER NOT NULL,
		voice_speed REAL NOT NULL,
		theme TEXT NOT NULL,
		cloud_sync INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS images (
		id TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_categories_position ON categories(position);
	CREATE INDEX IF NOT EXISTS idx_categories_sync ON categories(sync_status);
	CREATE INDEX IF NOT EXISTS idx_flashcards_category ON flashcards(category_id);
	CREATE INDEX IF NOT EXISTS idx_flashcards_sync ON flashcards(sync_status);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// MigrationOccurred reports whether a legacy-id migration ran during this
// session. The flag is edge-triggered: it reports true exactly once and
// subsequent calls return false until another migration runs.
func (s *Store) MigrationOccurred() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	occurred := s.migrated
	s.migrated = false
	return occurred
}

// withRecovery runs op, and if it failed because a collection is missing
// (first run or partial upgrade), provisions the schema and retries the
// operation exactly once.
func (s *Store) withRecovery(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !isMissingTable(err) {
		return err
	}
	s.logger.Printf("Recovering missing collection: %v", err)
	if initErr := s.InitSchema(ctx); initErr != nil {
		return fmt.Errorf("schema recovery failed: %w (original: %v)", initErr, err)
	}
	return op()
}

// isMissingTable reports whether err is SQLite's "no such table" class of
// error.
func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// metaGet reads a meta key, returning "" when absent.
func (s *Store) metaGet(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return value, nil
}

// metaSet writes a meta key.
func (s *Store) metaSet(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}
