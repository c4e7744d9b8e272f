// Package runner orchestrates a full validation run: stage discovery,
// rule evaluation, scoring, anomaly detection, schema drift detection, and
// the persistence of every outcome to the history store and the output
// directory.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/dqsentry/internal/adapter"
	"github.com/leapstack-labs/dqsentry/internal/anomaly"
	"github.com/leapstack-labs/dqsentry/internal/drift"
	"github.com/leapstack-labs/dqsentry/internal/evaluate"
	"github.com/leapstack-labs/dqsentry/internal/report"
	"github.com/leapstack-labs/dqsentry/internal/rules"
	"github.com/leapstack-labs/dqsentry/internal/score"
	"github.com/leapstack-labs/dqsentry/internal/stage"
	"github.com/leapstack-labs/dqsentry/internal/state"
)

// Config holds everything a validation run needs. Paths are resolved by
// the CLI before the runner sees them.
type Config struct {
	RulesPath      string
	RootCausesPath string
	SchemaPath     string
	DatabasePath   string
	StatePath      string
	OutputDir      string
	DatasetName    string

	// RunID overrides the generated run identifier. Used by tests.
	RunID string

	Logger *slog.Logger
}

// Summary is the outcome of one validation run.
type Summary struct {
	RunID        string
	RunTS        time.Time
	DatasetName  string
	Score        float64
	Subscores    map[string]float64
	Baseline     float64
	Minimum      float64
	TotalChecks  int
	FailedChecks int
	Results      []*evaluate.Result
	Anomalies    []anomaly.Record
	Drift        []drift.Record
	Metrics      *anomaly.RunMetrics
}

// Runner executes validation runs.
type Runner struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a runner. A nil logger in cfg discards output.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Run performs one validation run end to end. Every rule is evaluated,
// every outcome is appended to the history store, and the run's artifacts
// are written under the output directory. A rule referencing an unknown
// rule type or a missing staged table aborts the run.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	runTS := time.Now().UTC()

	catalog, err := rules.LoadCatalog(r.cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	causes, err := rules.LoadRootCauses(r.cfg.RootCausesPath)
	if err != nil {
		return nil, err
	}
	catalog.AttachRootCauses(causes)

	db := adapter.NewDuckDB()
	if err := db.Connect(ctx, adapter.Config{Path: r.cfg.DatabasePath}); err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	store := state.NewStore(r.logger)
	if err := store.Open(r.cfg.StatePath); err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()
	if err := store.InitSchema(); err != nil {
		return nil, err
	}

	runID := r.cfg.RunID
	if runID == "" {
		runID = state.NewRunID()
	}
	r.logger.Info("starting validation run",
		"run_id", runID,
		"dataset", r.cfg.DatasetName,
		"rules", len(catalog.Rules))

	meta, err := stage.Collect(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to collect stage metadata: %w", err)
	}

	// Anomaly baselines come from history recorded before this run.
	history, err := store.MetricsHistory(r.cfg.DatasetName)
	if err != nil {
		return nil, err
	}

	evaluator := evaluate.New(meta, db, r.logger)
	results := make([]*evaluate.Result, 0, len(catalog.Rules))
	for _, rule := range catalog.Rules {
		result, err := evaluator.Evaluate(ctx, rule)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	overall, subscores := score.Calculate(results, catalog.Baseline, catalog.Minimum)

	metrics, err := anomaly.CollectMetrics(ctx, db)
	if err != nil {
		return nil, err
	}
	anomalies := anomaly.Detect(metrics, history, runTS.Format(time.RFC3339), r.cfg.DatasetName)

	expected, err := drift.LoadExpectedSchema(r.cfg.SchemaPath)
	if err != nil {
		return nil, err
	}
	observed, err := drift.CollectObservedSchema(ctx, db)
	if err != nil {
		return nil, err
	}
	driftRecords := drift.Compare(expected, observed)

	summary := &Summary{
		RunID:       runID,
		RunTS:       runTS,
		DatasetName: r.cfg.DatasetName,
		Score:       overall,
		Subscores:   subscores,
		Baseline:    catalog.Baseline,
		Minimum:     catalog.Minimum,
		TotalChecks: len(results),
		Results:     results,
		Anomalies:   anomalies,
		Drift:       driftRecords,
		Metrics:     metrics,
	}
	for _, result := range results {
		if result.FailureCount > 0 {
			summary.FailedChecks++
		}
	}

	if err := r.persist(store, summary); err != nil {
		return nil, err
	}
	if err := r.writeArtifacts(store, summary); err != nil {
		return nil, err
	}

	r.logger.Info("validation run complete",
		"run_id", runID,
		"score", summary.Score,
		"checks", summary.TotalChecks,
		"failed", summary.FailedChecks,
		"anomalies", len(anomalies),
		"drift", len(driftRecords))
	return summary, nil
}

// persist appends every outcome of the run to the history store.
func (r *Runner) persist(store *state.Store, summary *Summary) error {
	runTS := summary.RunTS.Format(time.RFC3339)

	totals := make(map[string]int64)
	for _, result := range summary.Results {
		if result.StageTable != "*" {
			totals[result.StageTable] = result.TotalRows
		}
	}
	totalsJSON, _ := json.Marshal(totals)
	if err := store.AppendRunHistory(state.RunRecord{
		RunID:            summary.RunID,
		RunTS:            runTS,
		DatasetName:      summary.DatasetName,
		TotalRowsByTable: string(totalsJSON),
	}); err != nil {
		return err
	}

	checks := report.CheckRecords(summary.Results, summary.RunID, summary.DatasetName)
	if err := store.AppendCheckResults(checks); err != nil {
		return err
	}
	issues := report.IssueRecords(summary.Results, summary.RunID, summary.RunTS, summary.DatasetName)
	if err := store.AppendIssues(issues); err != nil {
		return err
	}

	counts, _ := json.Marshal(summary.Metrics.EventTypeCounts)
	dist, _ := json.Marshal(summary.Metrics.EventTypeDistribution)
	if err := store.AppendMetrics(state.MetricsRecord{
		RunID:                 summary.RunID,
		RunTS:                 runTS,
		DatasetName:           summary.DatasetName,
		EventVolume:           summary.Metrics.EventVolume,
		CompletionCount:       summary.Metrics.CompletionCount,
		CompletionRate:        summary.Metrics.CompletionRate,
		EventTypeCounts:       string(counts),
		EventTypeDistribution: string(dist),
	}); err != nil {
		return err
	}

	if err := store.AppendAnomalies(summary.RunID, summary.Anomalies); err != nil {
		return err
	}
	if err := store.AppendDrift(summary.RunID, runTS, summary.DatasetName, summary.Drift); err != nil {
		return err
	}

	penalty, weight := report.TotalPenaltyWeight(checks)
	subscores, _ := json.Marshal(summary.Subscores)
	return store.AppendScore(state.ScoreRecord{
		RunID:        summary.RunID,
		RunTS:        runTS,
		DatasetName:  summary.DatasetName,
		Score:        summary.Score,
		Baseline:     summary.Baseline,
		Minimum:      summary.Minimum,
		TotalPenalty: penalty,
		TotalWeight:  weight,
		TotalChecks:  summary.TotalChecks,
		FailedChecks: summary.FailedChecks,
		Subscores:    string(subscores),
	})
}

// writeArtifacts exports the run's file artifacts: the JSON score payload,
// the issues CSV, the recurrence summary, and per-run parquet partitions.
func (r *Runner) writeArtifacts(store *state.Store, summary *Summary) error {
	if r.cfg.OutputDir == "" {
		return nil
	}

	checks, err := store.CheckResults(summary.RunID)
	if err != nil {
		return err
	}
	issues, err := store.Issues(summary.RunID)
	if err != nil {
		return err
	}

	payload := report.BuildScorePayload(checks, issues,
		summary.RunID, summary.RunTS.Format(time.RFC3339), summary.DatasetName,
		summary.Baseline, summary.Minimum)
	if err := report.WriteScoreJSON(filepath.Join(r.cfg.OutputDir, "dq_score.json"), payload); err != nil {
		return err
	}
	if err := report.WriteIssuesCSV(filepath.Join(r.cfg.OutputDir, "dq_issues.csv"), issues); err != nil {
		return err
	}

	history, err := store.IssueHistory()
	if err != nil {
		return err
	}
	recurrence := report.Recurrence(history, report.RecurrenceLimit)
	if err := report.WriteRecurrenceJSON(filepath.Join(r.cfg.OutputDir, "dq_recurrence.json"), recurrence); err != nil {
		return err
	}

	return report.WriteParquet(r.cfg.OutputDir, summary.RunID, checks, issues)
}
