package state

import (
	"encoding/json"
	"fmt"

	"github.com/leapstack-labs/dqsentry/internal/drift"
)

// AppendDrift appends schema-drift records for a run. Column lists and
// type changes are stored as JSON arrays.
func (s *Store) AppendDrift(runID, runTS, dataset string, records []drift.Record) error {
	if s.db == nil {
		return fmt.Errorf("history store not opened")
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO schema_drift (
			run_id, run_ts, dataset_name, table_name, missing_columns,
			new_columns, type_changes, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare drift insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		missing, _ := json.Marshal(r.MissingColumns)
		added, _ := json.Marshal(r.NewColumns)
		changes, _ := json.Marshal(r.TypeChanges)
		if _, err := stmt.Exec(
			runID, runTS, dataset, r.Table,
			string(missing), string(added), string(changes), r.Notes,
		); err != nil {
			return fmt.Errorf("failed to append drift for %s: %w", r.Table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema drift: %w", err)
	}

	s.logger.Debug("appended schema drift", "count", len(records))
	return nil
}
