// Package state persists run history in SQLite. All tables are
// append-only logs: every reader sees the full history, and corrections
// happen by producing a new run. This replaces rewrite-wholesale history
// files; callers still serialize concurrent runs against the same store.
package state

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

//go:embed schema.sql
var schemaSQL string

// Store is the SQLite-backed history store.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewStore creates a new history store instance. A nil logger discards
// output.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger}
}

// Open opens a connection to the SQLite database. Use ":memory:" for an
// in-memory store.
func (s *Store) Open(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping history store: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema applies the embedded schema. Idempotent.
func (s *Store) InitSchema() error {
	if s.db == nil {
		return fmt.Errorf("history store not opened")
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return nil
}

// NewRunID generates a run identifier.
func NewRunID() string {
	return uuid.New().String()
}
