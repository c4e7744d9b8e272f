package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dqsentry/internal/cli/config"
	"github.com/leapstack-labs/dqsentry/internal/report"
	"github.com/leapstack-labs/dqsentry/internal/state"
)

// ScoreOptions holds options for the score command.
type ScoreOptions struct {
	RunID    string
	Baseline float64
	Minimum  float64
}

// NewScoreCommand creates the score command.
func NewScoreCommand() *cobra.Command {
	opts := &ScoreOptions{}

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Print the score payload for a run",
		Long: `Rebuild the JSON score payload from the history store. Defaults to the
most recent run; pass --run-id for an older one.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScore(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "Run to report on (default: latest)")
	cmd.Flags().Float64Var(&opts.Baseline, "baseline", 100.0, "Score baseline")
	cmd.Flags().Float64Var(&opts.Minimum, "min", 0.0, "Score floor")

	return cmd
}

func runScore(cmd *cobra.Command, opts *ScoreOptions) error {
	cfg := config.GetCurrentConfig()
	logger := config.GetLogger(cmd.Context())

	store := state.NewStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if err := store.InitSchema(); err != nil {
		return err
	}

	runID := opts.RunID
	var runTS, dataset string
	if runID == "" {
		latest, err := store.LatestRun()
		if err != nil {
			return err
		}
		if latest == nil {
			return fmt.Errorf("history store has no runs")
		}
		runID, runTS, dataset = latest.RunID, latest.RunTS, latest.DatasetName
	} else {
		run, err := store.Run(runID)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("unknown run id %q", runID)
		}
		runTS, dataset = run.RunTS, run.DatasetName
	}

	checks, err := store.CheckResults(runID)
	if err != nil {
		return err
	}
	issues, err := store.Issues(runID)
	if err != nil {
		return err
	}
	history, err := store.IssueHistory()
	if err != nil {
		return err
	}

	payload := report.BuildScorePayload(checks, issues, runID, runTS, dataset,
		opts.Baseline, opts.Minimum)

	doc := struct {
		report.ScorePayload
		RecurringIssues []report.RecurringIssue `json:"recurring_issues"`
	}{
		ScorePayload:    payload,
		RecurringIssues: report.Recurrence(history, report.RecurrenceLimit),
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
