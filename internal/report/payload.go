package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/dqsentry/internal/state"
)

// IssuePreviewSize caps the number of issues inlined into the score
// payload.
const IssuePreviewSize = 12

// CheckSummary is one check's line in the score payload.
type CheckSummary struct {
	CheckID          string  `json:"check_id"`
	TableName        string  `json:"table_name"`
	Dimension        string  `json:"dimension"`
	Description      string  `json:"description"`
	Status           string  `json:"status"`
	FailureRate      float64 `json:"failure_rate"`
	ThresholdWarning float64 `json:"threshold_warning"`
	ThresholdFail    float64 `json:"threshold_fail"`
}

// IssuePreview is one issue's line in the score payload.
type IssuePreview struct {
	CheckName         string  `json:"check_name"`
	TableName         string  `json:"table_name"`
	IssueType         string  `json:"issue_type"`
	Severity          int     `json:"severity"`
	AffectedRows      int64   `json:"affected_rows"`
	AffectedPct       float64 `json:"affected_pct"`
	ProbableRootCause string  `json:"probable_root_cause"`
	RecommendedFix    string  `json:"recommended_fix"`
}

// ScorePayload is the JSON document summarizing a run for downstream
// reporting.
type ScorePayload struct {
	RunID        string             `json:"run_id"`
	RunTS        string             `json:"run_ts"`
	DatasetName  string             `json:"dataset_name"`
	Score        float64            `json:"score"`
	Baseline     float64            `json:"baseline"`
	Minimum      float64            `json:"minimum"`
	TotalChecks  int                `json:"total_checks"`
	FailedChecks int                `json:"failed_checks"`
	IssueCounts  map[string]int     `json:"issue_counts"`
	Subscores    map[string]float64 `json:"subscores"`
	CheckSummary []CheckSummary     `json:"check_summary"`
	IssuePreview []IssuePreview     `json:"issue_preview"`
	GeneratedAt  string             `json:"generated_at"`
}

// BuildScorePayload assembles the payload from persisted check and issue
// rows. Scores are recomputed from the rows, so the payload can be rebuilt
// for any historical run.
func BuildScorePayload(checks []state.CheckRecord, issues []state.IssueRecord,
	runID, runTS, dataset string, baseline, minimum float64) ScorePayload {

	overall, subscores := scoresFromRecords(checks, baseline, minimum)

	rounded := make(map[string]float64, len(subscores))
	for dim, value := range subscores {
		rounded[dim] = round2(value)
	}

	issueCounts := make(map[string]int)
	for _, issue := range issues {
		issueCounts[issue.IssueType]++
	}

	summary := make([]CheckSummary, 0, len(checks))
	for _, check := range checks {
		summary = append(summary, CheckSummary{
			CheckID:          check.CheckID,
			TableName:        check.TableName,
			Dimension:        check.Dimension,
			Description:      check.Description,
			Status:           check.Status,
			FailureRate:      check.FailureRate,
			ThresholdWarning: check.ThresholdWarning,
			ThresholdFail:    check.ThresholdFail,
		})
	}

	preview := make([]IssuePreview, 0, min(len(issues), IssuePreviewSize))
	for _, issue := range issues {
		if len(preview) == IssuePreviewSize {
			break
		}
		preview = append(preview, IssuePreview{
			CheckName:         issue.CheckName,
			TableName:         issue.TableName,
			IssueType:         issue.IssueType,
			Severity:          issue.Severity,
			AffectedRows:      issue.AffectedRows,
			AffectedPct:       issue.AffectedPct,
			ProbableRootCause: issue.ProbableRootCause,
			RecommendedFix:    issue.RecommendedFix,
		})
	}

	return ScorePayload{
		RunID:        runID,
		RunTS:        runTS,
		DatasetName:  dataset,
		Score:        round2(overall),
		Baseline:     baseline,
		Minimum:      minimum,
		TotalChecks:  len(checks),
		FailedChecks: len(issues),
		IssueCounts:  issueCounts,
		Subscores:    rounded,
		CheckSummary: summary,
		IssuePreview: preview,
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
	}
}

// scoresFromRecords recomputes the scoring reduction from persisted rows.
// Same formula as the score package, restated over stored penalties and
// weights.
func scoresFromRecords(checks []state.CheckRecord, baseline, minimum float64) (float64, map[string]float64) {
	var totalPenalty, totalWeight float64
	penalties := make(map[string]float64)
	weights := make(map[string]float64)
	for _, check := range checks {
		totalPenalty += check.Penalty
		totalWeight += check.Weight
		penalties[check.Dimension] += check.Penalty
		weights[check.Dimension] += check.Weight
	}

	var normalized float64
	if totalWeight > 0 {
		normalized = totalPenalty / totalWeight
	}
	overall := max(minimum, baseline-100*normalized)

	subscores := make(map[string]float64)
	for dim, weight := range weights {
		if weight == 0 {
			continue
		}
		subscores[dim] = max(minimum, baseline-100*(penalties[dim]/weight))
	}
	return overall, subscores
}

// TotalPenaltyWeight sums penalties and weights over persisted check rows.
func TotalPenaltyWeight(checks []state.CheckRecord) (penalty, weight float64) {
	for _, check := range checks {
		penalty += check.Penalty
		weight += check.Weight
	}
	return penalty, weight
}

// WriteScoreJSON writes the payload to path, creating parent directories.
func WriteScoreJSON(path string, payload ScorePayload) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode score payload: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write score payload: %w", err)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
