package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/leapstack-labs/dqsentry/internal/state"
)

var issueCSVHeader = []string{
	"run_id", "run_ts", "dataset_name", "table_name", "check_name",
	"dimension", "issue_type", "severity", "affected_rows", "affected_pct",
	"probable_root_cause", "recommended_fix",
}

// WriteIssuesCSV writes the run's issues to path. The header row is written
// even when there are no issues, so downstream loaders always see a valid
// file.
func WriteIssuesCSV(path string, issues []state.IssueRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create issues csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(issueCSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, issue := range issues {
		row := []string{
			issue.RunID, issue.RunTS, issue.DatasetName, issue.TableName,
			issue.CheckName, issue.Dimension, issue.IssueType,
			strconv.Itoa(issue.Severity),
			strconv.FormatInt(issue.AffectedRows, 10),
			strconv.FormatFloat(issue.AffectedPct, 'f', -1, 64),
			issue.ProbableRootCause, issue.RecommendedFix,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush issues csv: %w", err)
	}
	return nil
}
