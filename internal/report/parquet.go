package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/leapstack-labs/dqsentry/internal/state"
)

// CheckResultRow is the parquet shape of a persisted check outcome.
type CheckResultRow struct {
	RunID            string  `parquet:"run_id,snappy"`
	DatasetName      string  `parquet:"dataset_name,snappy"`
	TableName        string  `parquet:"table_name,snappy"`
	StageTable       string  `parquet:"stage_table,snappy"`
	CheckID          string  `parquet:"check_id,snappy"`
	Dimension        string  `parquet:"dimension,snappy"`
	Description      string  `parquet:"description,snappy"`
	RuleType         string  `parquet:"rule_type,snappy"`
	Columns          string  `parquet:"columns,snappy"`
	ColumnRegex      string  `parquet:"column_regex,snappy,optional"`
	Severity         int32   `parquet:"severity,snappy"`
	Weight           float64 `parquet:"weight,snappy"`
	ThresholdWarning float64 `parquet:"threshold_warning,snappy"`
	ThresholdFail    float64 `parquet:"threshold_fail,snappy"`
	FailureRate      float64 `parquet:"failure_rate,snappy"`
	FailureCount     int64   `parquet:"failure_count,snappy"`
	TotalRows        int64   `parquet:"total_rows,snappy"`
	Status           string  `parquet:"status,snappy"`
	Penalty          float64 `parquet:"penalty,snappy"`
}

// IssueRow is the parquet shape of an issue-log entry.
type IssueRow struct {
	RunID               string  `parquet:"run_id,snappy"`
	RunTS               string  `parquet:"run_ts,snappy"`
	DatasetName         string  `parquet:"dataset_name,snappy"`
	TableName           string  `parquet:"table_name,snappy"`
	CheckName           string  `parquet:"check_name,snappy"`
	Dimension           string  `parquet:"dimension,snappy"`
	IssueType           string  `parquet:"issue_type,snappy"`
	Severity            int32   `parquet:"severity,snappy"`
	AffectedRows        int64   `parquet:"affected_rows,snappy"`
	AffectedPct         float64 `parquet:"affected_pct,snappy"`
	SampleBadRowsJSON   string  `parquet:"sample_bad_rows_json,snappy,optional"`
	ProbableRootCause   string  `parquet:"probable_root_cause,snappy"`
	RecommendedFix      string  `parquet:"recommended_fix,snappy"`
	RootCauseCandidates string  `parquet:"root_cause_candidates,snappy,optional"`
}

// WriteParquet exports the run's check results and issues as immutable
// per-run parquet files under outDir, partitioned by run id:
//
//	<outDir>/dq_check_results/run_id=<id>/check_results.parquet
//	<outDir>/dq_issue_log/run_id=<id>/issue_log.parquet
func WriteParquet(outDir, runID string, checks []state.CheckRecord, issues []state.IssueRecord) error {
	checkRows := make([]CheckResultRow, 0, len(checks))
	for _, c := range checks {
		checkRows = append(checkRows, CheckResultRow{
			RunID:            c.RunID,
			DatasetName:      c.DatasetName,
			TableName:        c.TableName,
			StageTable:       c.StageTable,
			CheckID:          c.CheckID,
			Dimension:        c.Dimension,
			Description:      c.Description,
			RuleType:         c.RuleType,
			Columns:          c.Columns,
			ColumnRegex:      c.ColumnRegex,
			Severity:         int32(c.Severity),
			Weight:           c.Weight,
			ThresholdWarning: c.ThresholdWarning,
			ThresholdFail:    c.ThresholdFail,
			FailureRate:      c.FailureRate,
			FailureCount:     c.FailureCount,
			TotalRows:        c.TotalRows,
			Status:           c.Status,
			Penalty:          c.Penalty,
		})
	}
	checkPath := filepath.Join(outDir, "dq_check_results", "run_id="+runID, "check_results.parquet")
	if err := writeParquetFile(checkPath, checkRows); err != nil {
		return fmt.Errorf("failed to export check results: %w", err)
	}

	issueRows := make([]IssueRow, 0, len(issues))
	for _, i := range issues {
		issueRows = append(issueRows, IssueRow{
			RunID:               i.RunID,
			RunTS:               i.RunTS,
			DatasetName:         i.DatasetName,
			TableName:           i.TableName,
			CheckName:           i.CheckName,
			Dimension:           i.Dimension,
			IssueType:           i.IssueType,
			Severity:            int32(i.Severity),
			AffectedRows:        i.AffectedRows,
			AffectedPct:         i.AffectedPct,
			SampleBadRowsJSON:   i.SampleBadRowsJSON,
			ProbableRootCause:   i.ProbableRootCause,
			RecommendedFix:      i.RecommendedFix,
			RootCauseCandidates: i.RootCauseCandidates,
		})
	}
	issuePath := filepath.Join(outDir, "dq_issue_log", "run_id="+runID, "issue_log.parquet")
	if err := writeParquetFile(issuePath, issueRows); err != nil {
		return fmt.Errorf("failed to export issue log: %w", err)
	}
	return nil
}

func writeParquetFile[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create parquet directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer func() { _ = f.Close() }()

	writer := parquet.NewGenericWriter[T](f)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
