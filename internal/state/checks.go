package state

import (
	"fmt"
)

// CheckRecord is one persisted check outcome row.
type CheckRecord struct {
	RunID            string
	DatasetName      string
	TableName        string
	StageTable       string
	CheckID          string
	Dimension        string
	Description      string
	RuleType         string
	Columns          string
	ColumnRegex      string
	Severity         int
	Weight           float64
	ThresholdWarning float64
	ThresholdFail    float64
	FailureRate      float64
	FailureCount     int64
	TotalRows        int64
	Status           string
	Penalty          float64
}

// AppendCheckResults appends one row per evaluated rule for a run.
func (s *Store) AppendCheckResults(records []CheckRecord) error {
	if s.db == nil {
		return fmt.Errorf("history store not opened")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO check_results (
			run_id, dataset_name, table_name, stage_table, check_id,
			dimension, description, rule_type, columns, column_regex,
			severity, weight, threshold_warning, threshold_fail,
			failure_rate, failure_count, total_rows, status, penalty
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare check insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.Exec(
			r.RunID, r.DatasetName, r.TableName, r.StageTable, r.CheckID,
			r.Dimension, r.Description, r.RuleType, r.Columns, r.ColumnRegex,
			r.Severity, r.Weight, r.ThresholdWarning, r.ThresholdFail,
			r.FailureRate, r.FailureCount, r.TotalRows, r.Status, r.Penalty,
		); err != nil {
			return fmt.Errorf("failed to append check result %s: %w", r.CheckID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit check results: %w", err)
	}

	s.logger.Debug("appended check results", "count", len(records))
	return nil
}

// CheckResults returns the persisted check rows for one run.
func (s *Store) CheckResults(runID string) ([]CheckRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("history store not opened")
	}

	rows, err := s.db.Query(`
		SELECT run_id, dataset_name, table_name, stage_table, check_id,
		       dimension, description, rule_type, columns, column_regex,
		       severity, weight, threshold_warning, threshold_fail,
		       failure_rate, failure_count, total_rows, status, penalty
		FROM check_results WHERE run_id = ? ORDER BY check_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read check results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []CheckRecord
	for rows.Next() {
		var r CheckRecord
		if err := rows.Scan(
			&r.RunID, &r.DatasetName, &r.TableName, &r.StageTable, &r.CheckID,
			&r.Dimension, &r.Description, &r.RuleType, &r.Columns, &r.ColumnRegex,
			&r.Severity, &r.Weight, &r.ThresholdWarning, &r.ThresholdFail,
			&r.FailureRate, &r.FailureCount, &r.TotalRows, &r.Status, &r.Penalty,
		); err != nil {
			return nil, fmt.Errorf("failed to scan check result: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating check results: %w", err)
	}
	return records, nil
}
