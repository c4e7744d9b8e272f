package state

import (
	"fmt"

	"github.com/leapstack-labs/dqsentry/internal/anomaly"
)

// AppendAnomalies appends flagged deviations for a run.
func (s *Store) AppendAnomalies(runID string, records []anomaly.Record) error {
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
		INSERT INTO anomalies (
			run_id, run_ts, dataset_name, metric, metric_value,
			baseline_value, baseline_spread, z_score, threshold, direction,
			notes, details
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare anomaly insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.Exec(
			runID, r.RunTS, r.DatasetName, r.Metric, r.MetricValue,
			r.BaselineValue, r.BaselineSpread, r.ZScore, r.Threshold,
			r.Direction, r.Notes, r.Details,
		); err != nil {
			return fmt.Errorf("failed to append anomaly %s: %w", r.Metric, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit anomalies: %w", err)
	}

	s.logger.Debug("appended anomalies", "count", len(records))
	return nil
}

// Anomalies returns the anomaly rows for one run.
func (s *Store) Anomalies(runID string) ([]anomaly.Record, error) {
	if s.db == nil {
		return nil, fmt.Errorf("history store not opened")
	}

	rows, err := s.db.Query(`
		SELECT run_ts, dataset_name, metric, metric_value, baseline_value,
		       baseline_spread, z_score, threshold, direction, notes, details
		FROM anomalies WHERE run_id = ? ORDER BY metric`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read anomalies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []anomaly.Record
	for rows.Next() {
		var r anomaly.Record
		if err := rows.Scan(&r.RunTS, &r.DatasetName, &r.Metric, &r.MetricValue,
			&r.BaselineValue, &r.BaselineSpread, &r.ZScore, &r.Threshold,
			&r.Direction, &r.Notes, &r.Details); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating anomalies: %w", err)
	}
	return records, nil
}
