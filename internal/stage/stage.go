// Package stage collects metadata about staged tables: the mapping from
// logical to physical table names, per-table column lists, and row counts.
// All rule evaluation totals come from this snapshot rather than repeated
// COUNT(*) queries.
package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/dqsentry/internal/adapter"
)

// Prefix is the physical name prefix shared by all staged tables.
const Prefix = "staging_"

// Metadata is a per-run snapshot of the staged data store.
type Metadata struct {
	// TableMap maps logical table names to physical staged tables.
	TableMap map[string]string
	// Columns maps physical table names to their column names in
	// ordinal order.
	Columns map[string][]string
	// Counts maps physical table names to their row counts.
	Counts map[string]int64
}

// Collect enumerates staged tables, columns, and row counts.
func Collect(ctx context.Context, db adapter.Adapter) (*Metadata, error) {
	tables, err := db.StagingTables(ctx)
	if err != nil {
		return nil, err
	}

	meta := &Metadata{
		TableMap: make(map[string]string, len(tables)),
		Columns:  make(map[string][]string, len(tables)),
		Counts:   make(map[string]int64, len(tables)),
	}
	for _, table := range tables {
		logical := strings.TrimPrefix(table, Prefix)
		meta.TableMap[logical] = table

		columns, err := db.TableColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(columns))
		for i, col := range columns {
			names[i] = col.Name
		}
		meta.Columns[table] = names

		count, err := db.Count(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", adapter.QuoteIdent(table)))
		if err != nil {
			return nil, err
		}
		meta.Counts[table] = count
	}
	return meta, nil
}

// Resolve maps a logical table name to its physical staged table. A rule
// referencing a table absent from stage metadata aborts the run: there is
// no partial evaluation.
func (m *Metadata) Resolve(logical string) (string, error) {
	if physical, ok := m.TableMap[logical]; ok {
		return physical, nil
	}
	candidate := Prefix + logical
	for _, physical := range m.TableMap {
		if physical == candidate {
			return physical, nil
		}
	}
	return "", fmt.Errorf("missing staging table for %q", logical)
}
