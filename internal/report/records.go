// Package report builds the per-run output artifacts: check-result and
// issue rows for the history store, the JSON score payload, the issues
// CSV, per-run parquet exports, and the recurrence summary.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/dqsentry/internal/evaluate"
	"github.com/leapstack-labs/dqsentry/internal/state"
)

// CheckRecords shapes evaluation results into history-store rows, one per
// rule.
func CheckRecords(results []*evaluate.Result, runID, dataset string) []state.CheckRecord {
	records := make([]state.CheckRecord, 0, len(results))
	for _, result := range results {
		rule := result.Rule
		records = append(records, state.CheckRecord{
			RunID:            runID,
			DatasetName:      dataset,
			TableName:        result.Table,
			StageTable:       result.StageTable,
			CheckID:          rule.ID,
			Dimension:        rule.Dimension,
			Description:      rule.Description,
			RuleType:         string(rule.Kind),
			Columns:          strings.Join(rule.Columns, ","),
			ColumnRegex:      rule.ColumnRegex,
			Severity:         rule.Severity,
			Weight:           rule.Weight,
			ThresholdWarning: rule.Threshold.Warning,
			ThresholdFail:    rule.Threshold.Fail,
			FailureRate:      result.FailureRate,
			FailureCount:     result.FailureCount,
			TotalRows:        result.TotalRows,
			Status:           string(result.Status),
			Penalty:          result.Penalty,
		})
	}
	return records
}

// IssueRecords shapes the failing results into issue-log rows. Passing
// checks produce no issue. The first configured root cause becomes the
// probable cause; rules without candidates fall back to their description
// and a generic fix.
func IssueRecords(results []*evaluate.Result, runID string, runTS time.Time, dataset string) []state.IssueRecord {
	var records []state.IssueRecord
	for _, result := range results {
		if result.FailureCount == 0 {
			continue
		}
		rule := result.Rule

		probableCause := rule.Description
		recommendedFix := fmt.Sprintf("Enforce %s for %s", rule.Kind, rule.Table)
		if len(rule.RootCauses) > 0 {
			probableCause = rule.RootCauses[0].ProbableCause
			recommendedFix = rule.RootCauses[0].RecommendedFix
		}

		samples, _ := json.Marshal(result.Samples)
		candidates, _ := json.Marshal(rule.RootCauses)
		records = append(records, state.IssueRecord{
			RunID:               runID,
			RunTS:               runTS.UTC().Format(time.RFC3339),
			DatasetName:         dataset,
			TableName:           result.Table,
			CheckName:           rule.ID,
			Dimension:           rule.Dimension,
			IssueType:           result.IssueType,
			Severity:            rule.Severity,
			AffectedRows:        result.FailureCount,
			AffectedPct:         result.FailureRate,
			SampleBadRowsJSON:   string(samples),
			ProbableRootCause:   probableCause,
			RecommendedFix:      recommendedFix,
			RootCauseCandidates: string(candidates),
		})
	}
	return records
}
