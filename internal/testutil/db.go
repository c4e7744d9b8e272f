package testutil

import (
	"context"
	"testing"

	"github.com/leapstack-labs/dqsentry/internal/adapter"
)

// OpenStageDB opens an in-memory DuckDB staged store for a test and closes
// it on cleanup.
func OpenStageDB(t testing.TB) adapter.Adapter {
	t.Helper()
	db := adapter.NewDuckDB()
	if err := db.Connect(context.Background(), adapter.Config{Path: ":memory:"}); err != nil {
		t.Fatalf("failed to open duckdb: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ExecAll executes each statement against the staged store, failing the
// test on the first error. Used to build staging fixtures.
func ExecAll(t testing.TB, db adapter.Adapter, statements ...string) {
	t.Helper()
	ctx := context.Background()
	for _, stmt := range statements {
		if err := db.Exec(ctx, stmt); err != nil {
			t.Fatalf("fixture statement failed: %v\n%s", err, stmt)
		}
	}
}
