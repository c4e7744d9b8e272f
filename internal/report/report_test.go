package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dqsentry/internal/evaluate"
	"github.com/leapstack-labs/dqsentry/internal/rules"
	"github.com/leapstack-labs/dqsentry/internal/state"
)

func sampleResult(id string, failures int64, causes []rules.RootCause) *evaluate.Result {
	rate := float64(failures) / 100
	return &evaluate.Result{
		Rule: &rules.CheckRule{
			ID: id, Table: "events", Dimension: "validity",
			Description: "description of " + id,
			Columns:     []string{"status", "user_id"},
			Kind:        rules.KindEnum, Severity: 3, Weight: 1.5,
			Threshold:  rules.Threshold{Warning: 0.01, Fail: 0.05},
			RootCauses: causes,
		},
		Table: "events", StageTable: "staging_events",
		FailureCount: failures, TotalRows: 100, FailureRate: rate,
		Status: evaluate.StatusWarn, Penalty: rate * 0.6 * 1.5,
		IssueType: "invalid",
		Samples:   []map[string]*string{},
	}
}

func TestCheckRecords(t *testing.T) {
	results := []*evaluate.Result{sampleResult("c1", 2, nil)}
	records := CheckRecords(results, "r1", "events")

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "r1", rec.RunID)
	assert.Equal(t, "events", rec.DatasetName)
	assert.Equal(t, "c1", rec.CheckID)
	assert.Equal(t, "ENUM", rec.RuleType)
	assert.Equal(t, "status,user_id", rec.Columns)
	assert.Equal(t, int64(2), rec.FailureCount)
	assert.Equal(t, 0.05, rec.ThresholdFail)
}

func TestIssueRecordsSkipsPassingChecks(t *testing.T) {
	runTS := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	results := []*evaluate.Result{
		sampleResult("clean", 0, nil),
		sampleResult("dirty", 4, nil),
	}

	records := IssueRecords(results, "r1", runTS, "events")
	require.Len(t, records, 1)
	assert.Equal(t, "dirty", records[0].CheckName)
	assert.Equal(t, "2024-06-01T12:00:00Z", records[0].RunTS)
	// Without configured candidates the description and a generic fix are
	// used.
	assert.Equal(t, "description of dirty", records[0].ProbableRootCause)
	assert.Equal(t, "Enforce ENUM for events", records[0].RecommendedFix)
}

func TestIssueRecordsUsesFirstRootCause(t *testing.T) {
	causes := []rules.RootCause{
		{ProbableCause: "upstream bug", RecommendedFix: "patch the feed"},
		{ProbableCause: "secondary", RecommendedFix: "ignored"},
	}
	results := []*evaluate.Result{sampleResult("dirty", 4, causes)}

	records := IssueRecords(results, "r1", time.Now(), "events")
	require.Len(t, records, 1)
	assert.Equal(t, "upstream bug", records[0].ProbableRootCause)
	assert.Equal(t, "patch the feed", records[0].RecommendedFix)
	assert.Contains(t, records[0].RootCauseCandidates, "secondary")
}

func TestBuildScorePayload(t *testing.T) {
	checks := []state.CheckRecord{
		{CheckID: "c1", Dimension: "validity", Weight: 1.0, Penalty: 0.1,
			Status: "warn", FailureRate: 0.1666666},
		{CheckID: "c2", Dimension: "completeness", Weight: 3.0, Penalty: 0.0,
			Status: "pass"},
	}
	issues := []state.IssueRecord{
		{CheckName: "c1", IssueType: "invalid", Severity: 3},
	}

	payload := BuildScorePayload(checks, issues, "r1", "2024-06-01T00:00:00Z", "events", 100.0, 0.0)

	assert.Equal(t, "r1", payload.RunID)
	assert.Equal(t, 2, payload.TotalChecks)
	assert.Equal(t, 1, payload.FailedChecks)
	// 100 - 100 * (0.1 / 4.0) = 97.5
	assert.Equal(t, 97.5, payload.Score)
	// Subscores rounded to two decimals.
	assert.Equal(t, 90.0, payload.Subscores["validity"])
	assert.Equal(t, 100.0, payload.Subscores["completeness"])
	assert.Equal(t, map[string]int{"invalid": 1}, payload.IssueCounts)
	require.Len(t, payload.CheckSummary, 2)
	require.Len(t, payload.IssuePreview, 1)
	assert.NotEmpty(t, payload.GeneratedAt)
}

func TestBuildScorePayloadPreviewCap(t *testing.T) {
	issues := make([]state.IssueRecord, IssuePreviewSize+5)
	payload := BuildScorePayload(nil, issues, "r1", "ts", "events", 100.0, 0.0)
	assert.Len(t, payload.IssuePreview, IssuePreviewSize)
	assert.Equal(t, IssuePreviewSize+5, payload.FailedChecks)
}

func TestWriteIssuesCSVHeaderAlways(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "issues.csv")
	require.NoError(t, WriteIssuesCSV(path, nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, issueCSVHeader, rows[0])
}

func TestWriteIssuesCSVRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.csv")
	issues := []state.IssueRecord{{
		RunID: "r1", RunTS: "2024-06-01T00:00:00Z", DatasetName: "events",
		TableName: "events", CheckName: "c1", Dimension: "validity",
		IssueType: "invalid", Severity: 3, AffectedRows: 4, AffectedPct: 0.04,
		ProbableRootCause: "cause, with comma", RecommendedFix: "fix",
	}}
	require.NoError(t, WriteIssuesCSV(path, issues))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c1", rows[1][4])
	assert.Equal(t, "cause, with comma", rows[1][10])
}

func TestRecurrence(t *testing.T) {
	issue := func(runTS, check string, pct float64, cause string) state.IssueRecord {
		return state.IssueRecord{
			RunTS: runTS, CheckName: check, TableName: "events",
			IssueType: "invalid", AffectedPct: pct,
			ProbableRootCause: cause, RecommendedFix: "fix " + cause,
		}
	}
	history := []state.IssueRecord{
		issue("2024-06-01T00:00:00Z", "frequent", 0.10, "old cause"),
		issue("2024-06-02T00:00:00Z", "frequent", 0.20, "mid cause"),
		issue("2024-06-03T00:00:00Z", "frequent", 0.40, "new cause"),
		issue("2024-06-03T00:00:00Z", "rare", 0.05, "rare cause"),
	}

	summaries := Recurrence(history, 10)
	require.Len(t, summaries, 2)

	top := summaries[0]
	assert.Equal(t, "frequent", top.CheckName)
	assert.Equal(t, 3, top.Occurrences)
	assert.InDelta(t, 0.20, top.MedianAffectedPct, 1e-9)
	assert.Equal(t, "2024-06-03T00:00:00Z", top.LastSeen)
	// Cause and fix come from the latest occurrence.
	assert.Equal(t, "new cause", top.ProbableRootCause)
	assert.Equal(t, "fix new cause", top.RecommendedFix)
}

func TestRecurrenceTieBreaksOnRecency(t *testing.T) {
	history := []state.IssueRecord{
		{RunTS: "2024-06-01T00:00:00Z", CheckName: "older", TableName: "t", IssueType: "invalid"},
		{RunTS: "2024-06-05T00:00:00Z", CheckName: "newer", TableName: "t", IssueType: "invalid"},
	}
	summaries := Recurrence(history, 10)
	require.Len(t, summaries, 2)
	assert.Equal(t, "newer", summaries[0].CheckName)
}

func TestRecurrenceLimit(t *testing.T) {
	var history []state.IssueRecord
	for _, name := range []string{"a", "b", "c"} {
		history = append(history, state.IssueRecord{
			RunTS: "2024-06-01T00:00:00Z", CheckName: name,
			TableName: "t", IssueType: "invalid",
		})
	}
	assert.Len(t, Recurrence(history, 2), 2)
	assert.Empty(t, Recurrence(nil, 10))
}

func TestWriteRecurrenceJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "recurrence.json")
	summaries := []RecurringIssue{{
		CheckName: "c1", TableName: "events", IssueType: "invalid",
		Occurrences: 3, LastSeen: "2024-06-03T00:00:00Z",
	}}
	require.NoError(t, WriteRecurrenceJSON(path, summaries))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []RecurringIssue
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].CheckName)
}

func TestWriteRecurrenceJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recurrence.json")
	require.NoError(t, WriteRecurrenceJSON(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestWriteParquetLayout(t *testing.T) {
	dir := t.TempDir()
	checks := []state.CheckRecord{{RunID: "r1", CheckID: "c1", Status: "pass"}}
	issues := []state.IssueRecord{{RunID: "r1", CheckName: "c1"}}

	require.NoError(t, WriteParquet(dir, "r1", checks, issues))

	checkPath := filepath.Join(dir, "dq_check_results", "run_id=r1", "check_results.parquet")
	issuePath := filepath.Join(dir, "dq_issue_log", "run_id=r1", "issue_log.parquet")
	for _, path := range []string{checkPath, issuePath} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestWriteParquetEmptyRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteParquet(dir, "r1", nil, nil))
	_, err := os.Stat(filepath.Join(dir, "dq_issue_log", "run_id=r1", "issue_log.parquet"))
	require.NoError(t, err)
}
