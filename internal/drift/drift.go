// Package drift compares the declared schema configuration against the
// staged tables actually produced by ingestion. The check is run-local
// and configuration-driven, not statistical.
package drift

import (
	"fmt"
	"sort"
	"strings"
)

// canonicalTypes maps declared configuration types to the generic category
// observed types are compared against.
var canonicalTypes = map[string]string{
	"uuid":       "varchar",
	"email":      "varchar",
	"enum":       "varchar",
	"state_code": "varchar",
	"string":     "varchar",
	"timestamp":  "timestamp",
	"int":        "integer",
	"integer":    "integer",
	"float":      "float",
	"decimal":    "float",
}

// Schema maps table name to column name to type.
type Schema map[string]map[string]string

// TypeChange records a column whose normalized declared type differs from
// the observed type.
type TypeChange struct {
	Column   string `json:"column"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Record holds the drift observed for one table. A table matching its
// declaration exactly produces no record.
type Record struct {
	Table          string
	MissingColumns []string
	NewColumns     []string
	TypeChanges    []TypeChange
	Notes          string
}

// CanonicalType normalizes a declared configuration type. Unknown types
// pass through lowercased.
func CanonicalType(declared string) string {
	key := strings.ToLower(strings.TrimSpace(declared))
	if canonical, ok := canonicalTypes[key]; ok {
		return canonical
	}
	return key
}

// Compare diffs the expected schema against the observed one. Expected
// tables absent from the staged store are reported with all columns
// missing; unexpected staged tables are reported with all columns new.
func Compare(expected, observed Schema) []Record {
	var records []Record

	for _, table := range sortedTableNames(expected) {
		if _, ok := observed[table]; ok {
			continue
		}
		records = append(records, Record{
			Table:          table,
			MissingColumns: sortedColumnNames(expected[table]),
			NewColumns:     []string{},
			TypeChanges:    []TypeChange{},
			Notes:          "Expected staging table was not created.",
		})
	}

	for _, table := range sortedTableNames(observed) {
		if _, ok := expected[table]; ok {
			continue
		}
		records = append(records, Record{
			Table:          table,
			MissingColumns: []string{},
			NewColumns:     sortedColumnNames(observed[table]),
			TypeChanges:    []TypeChange{},
			Notes:          "Unexpected staging table appeared.",
		})
	}

	for _, table := range sortedTableNames(expected) {
		observedCols, ok := observed[table]
		if !ok {
			continue
		}
		if record := compareTable(table, expected[table], observedCols); record != nil {
			records = append(records, *record)
		}
	}
	return records
}

func compareTable(table string, expected, observed map[string]string) *Record {
	var missing, added []string
	for column := range expected {
		if _, ok := observed[column]; !ok {
			missing = append(missing, column)
		}
	}
	for column := range observed {
		if _, ok := expected[column]; !ok {
			added = append(added, column)
		}
	}
	sort.Strings(missing)
	sort.Strings(added)

	var changes []TypeChange
	for _, column := range sortedColumnNames(expected) {
		observedType, ok := observed[column]
		if !ok {
			continue
		}
		want := CanonicalType(expected[column])
		got := strings.ToLower(strings.TrimSpace(observedType))
		if want != "" && got != "" && want != got {
			changes = append(changes, TypeChange{Column: column, Expected: want, Actual: got})
		}
	}

	if len(missing) == 0 && len(added) == 0 && len(changes) == 0 {
		return nil
	}

	var notes []string
	if len(missing) > 0 {
		notes = append(notes, fmt.Sprintf("Missing columns: %s", strings.Join(missing, ", ")))
	}
	if len(added) > 0 {
		notes = append(notes, fmt.Sprintf("New columns: %s", strings.Join(added, ", ")))
	}
	if len(changes) > 0 {
		parts := make([]string, len(changes))
		for i, change := range changes {
			parts[i] = fmt.Sprintf("%s (%s->%s)", change.Column, change.Expected, change.Actual)
		}
		notes = append(notes, fmt.Sprintf("Type changes: %s", strings.Join(parts, ", ")))
	}

	if missing == nil {
		missing = []string{}
	}
	if added == nil {
		added = []string{}
	}
	if changes == nil {
		changes = []TypeChange{}
	}
	return &Record{
		Table:          table,
		MissingColumns: missing,
		NewColumns:     added,
		TypeChanges:    changes,
		Notes:          strings.Join(notes, "; "),
	}
}

func sortedTableNames(s Schema) []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedColumnNames(columns map[string]string) []string {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
