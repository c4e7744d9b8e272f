package state

import "fmt"

// IssueRecord is one failing check's issue-log row. The issue log doubles
// as the cumulative issue history: per-run reads filter on run_id, history
// reads scan the whole table.
type IssueRecord struct {
	RunID               string
	RunTS               string
	DatasetName         string
	TableName           string
	CheckName           string
	Dimension           string
	IssueType           string
	Severity            int
	AffectedRows        int64
	AffectedPct         float64
	SampleBadRowsJSON   string
	ProbableRootCause   string
	RecommendedFix      string
	RootCauseCandidates string
}

// AppendIssues appends issue rows for a run.
func (s *Store) AppendIssues(records []IssueRecord) error {
	if s.db == nil {
		return fmt.Errorf("history store not opened")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO issue_log (
			run_id, run_ts, dataset_name, table_name, check_name,
			dimension, issue_type, severity, affected_rows, affected_pct,
			sample_bad_rows_json, probable_root_cause, recommended_fix,
			root_cause_candidates
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare issue insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.Exec(
			r.RunID, r.RunTS, r.DatasetName, r.TableName, r.CheckName,
			r.Dimension, r.IssueType, r.Severity, r.AffectedRows, r.AffectedPct,
			r.SampleBadRowsJSON, r.ProbableRootCause, r.RecommendedFix,
			r.RootCauseCandidates,
		); err != nil {
			return fmt.Errorf("failed to append issue %s: %w", r.CheckName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit issues: %w", err)
	}

	s.logger.Debug("appended issues", "count", len(records))
	return nil
}

// Issues returns the issue rows for one run.
func (s *Store) Issues(runID string) ([]IssueRecord, error) {
	return s.queryIssues("SELECT * FROM issue_log WHERE run_id = ? ORDER BY check_name", runID)
}

// IssueHistory returns every issue row ever recorded.
func (s *Store) IssueHistory() ([]IssueRecord, error) {
	return s.queryIssues("SELECT * FROM issue_log ORDER BY run_ts, check_name")
}

func (s *Store) queryIssues(query string, args ...any) ([]IssueRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("history store not opened")
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []IssueRecord
	for rows.Next() {
		var r IssueRecord
		if err := rows.Scan(
			&r.RunID, &r.RunTS, &r.DatasetName, &r.TableName, &r.CheckName,
			&r.Dimension, &r.IssueType, &r.Severity, &r.AffectedRows, &r.AffectedPct,
			&r.SampleBadRowsJSON, &r.ProbableRootCause, &r.RecommendedFix,
			&r.RootCauseCandidates,
		); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issues: %w", err)
	}
	return records, nil
}
