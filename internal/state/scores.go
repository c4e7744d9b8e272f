package state

import "fmt"

// ScoreRecord is one score-history row. Subscores is a JSON object keyed
// by dimension.
type ScoreRecord struct {
	RunID        string
	RunTS        string
	DatasetName  string
	Score        float64
	Baseline     float64
	Minimum      float64
	TotalPenalty float64
	TotalWeight  float64
	TotalChecks  int
	FailedChecks int
	Subscores    string
}

// AppendScore appends the run's score-history row.
func (s *Store) AppendScore(record ScoreRecord) error {
	if s.db == nil {
		return fmt.Errorf("history store not opened")
	}
	if _, err := s.db.Exec(`
		INSERT INTO score_history (
			run_id, run_ts, dataset_name, score, baseline, minimum,
			total_penalty, total_weight, total_checks, failed_checks, subscores
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.RunID, record.RunTS, record.DatasetName, record.Score,
		record.Baseline, record.Minimum, record.TotalPenalty,
		record.TotalWeight, record.TotalChecks, record.FailedChecks,
		record.Subscores,
	); err != nil {
		return fmt.Errorf("failed to append score history: %w", err)
	}
	return nil
}

// Score returns the score row for one run, or nil when unknown.
func (s *Store) Score(runID string) (*ScoreRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("history store not opened")
	}

	rows, err := s.db.Query(`
		SELECT run_id, run_ts, dataset_name, score, baseline, minimum,
		       total_penalty, total_weight, total_checks, failed_checks, subscores
		FROM score_history WHERE run_id = ? LIMIT 1`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read score: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var r ScoreRecord
	if err := rows.Scan(&r.RunID, &r.RunTS, &r.DatasetName, &r.Score,
		&r.Baseline, &r.Minimum, &r.TotalPenalty, &r.TotalWeight,
		&r.TotalChecks, &r.FailedChecks, &r.Subscores); err != nil {
		return nil, fmt.Errorf("failed to scan score: %w", err)
	}
	return &r, nil
}

// ScoreHistory returns up to limit of the most recent score rows, newest
// first.
func (s *Store) ScoreHistory(limit int) ([]ScoreRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("history store not opened")
	}

	rows, err := s.db.Query(`
		SELECT run_id, run_ts, dataset_name, score, baseline, minimum,
		       total_penalty, total_weight, total_checks, failed_checks, subscores
		FROM score_history ORDER BY run_ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read score history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []ScoreRecord
	for rows.Next() {
		var r ScoreRecord
		if err := rows.Scan(&r.RunID, &r.RunTS, &r.DatasetName, &r.Score,
			&r.Baseline, &r.Minimum, &r.TotalPenalty, &r.TotalWeight,
			&r.TotalChecks, &r.FailedChecks, &r.Subscores); err != nil {
			return nil, fmt.Errorf("failed to scan score history: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating score history: %w", err)
	}
	return records, nil
}
