package state

import (
	"database/sql"
	"errors"
	"fmt"
)

// RunRecord is one run-history row: when a dataset was validated and how
// many rows each staged table held.
type RunRecord struct {
	RunID            string
	RunTS            string
	DatasetName      string
	TotalRowsByTable string
}

// AppendRunHistory appends the run-history row for a run.
func (s *Store) AppendRunHistory(record RunRecord) error {
	if s.db == nil {
		return fmt.Errorf("history store not opened")
	}
	if _, err := s.db.Exec(`
		INSERT INTO run_history (run_id, run_ts, dataset_name, total_rows_by_table)
		VALUES (?, ?, ?, ?)`,
		record.RunID, record.RunTS, record.DatasetName, record.TotalRowsByTable,
	); err != nil {
		return fmt.Errorf("failed to append run history: %w", err)
	}
	return nil
}

// Run returns the run-history row for a run id, or nil when unknown.
func (s *Store) Run(runID string) (*RunRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("history store not opened")
	}

	var r RunRecord
	err := s.db.QueryRow(`
		SELECT run_id, run_ts, dataset_name, total_rows_by_table
		FROM run_history WHERE run_id = ?
		ORDER BY run_ts DESC LIMIT 1`, runID,
	).Scan(&r.RunID, &r.RunTS, &r.DatasetName, &r.TotalRowsByTable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run history: %w", err)
	}
	return &r, nil
}

// LatestRun returns the most recent run-history row, or nil when the
// store is empty.
func (s *Store) LatestRun() (*RunRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("history store not opened")
	}

	var r RunRecord
	err := s.db.QueryRow(`
		SELECT run_id, run_ts, dataset_name, total_rows_by_table
		FROM run_history ORDER BY run_ts DESC LIMIT 1`,
	).Scan(&r.RunID, &r.RunTS, &r.DatasetName, &r.TotalRowsByTable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run history: %w", err)
	}
	return &r, nil
}
