// Package adapter provides database access for dqsentry's staged data
// store. The staged store is a DuckDB database whose tables are produced
// by upstream ingestion under the `staging_` prefix.
package adapter

import (
	"context"
	"database/sql"
)

// Config holds the configuration for connecting to the staged store.
type Config struct {
	// Path is the DuckDB database file. Use ":memory:" for an in-memory
	// database (the default when empty).
	Path string
}

// ColumnInfo describes one column of a staged table.
type ColumnInfo struct {
	Name string
	// Type is the lowercased data type reported by information_schema.
	Type string
	// Position is the ordinal position of the column in the table.
	Position int
}

// Rows wraps sql.Rows to keep callers off the concrete driver.
type Rows struct {
	*sql.Rows
}

// Adapter is the query surface the evaluator and detectors run against.
// A connection is opened once per run and treated as exclusively owned
// for the run's duration.
type Adapter interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// Count executes a statement expected to return a single integer.
	Count(ctx context.Context, sql string) (int64, error)

	// StagingTables lists the staged base tables (staging_ prefix) in
	// name order.
	StagingTables(ctx context.Context) ([]string, error)

	// TableColumns returns the columns of a staged table in ordinal
	// order.
	TableColumns(ctx context.Context, table string) ([]ColumnInfo, error)
}
