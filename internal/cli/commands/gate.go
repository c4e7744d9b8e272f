package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dqsentry/internal/cli/config"
	"github.com/leapstack-labs/dqsentry/internal/report"
	"github.com/leapstack-labs/dqsentry/internal/state"
)

// GateOptions holds options for the gate command.
type GateOptions struct {
	RunID            string
	ScoreThreshold   float64
	CriticalSeverity int
}

// NewGateCommand creates the gate command.
func NewGateCommand() *cobra.Command {
	opts := &GateOptions{}

	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Check a run against the release gate",
		Long: `Exit non-zero when the run's score falls below the threshold or any
check of critical severity failed. Intended for CI pipelines.`,
		Example: `  # Gate the latest run with configured policy
  dqsentry gate

  # Tighten the policy for a release branch
  dqsentry gate --score-threshold 95`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "Run to gate (default: latest)")
	cmd.Flags().Float64Var(&opts.ScoreThreshold, "score-threshold", 0, "Minimum acceptable score (default from config)")
	cmd.Flags().IntVar(&opts.CriticalSeverity, "critical-severity", 0, "Severity at or above which a failed check blocks (default from config)")

	return cmd
}

func runGate(cmd *cobra.Command, opts *GateOptions) error {
	cfg := config.GetCurrentConfig()
	logger := config.GetLogger(cmd.Context())

	scoreThreshold := cfg.Gate.ScoreThreshold
	if cmd.Flags().Changed("score-threshold") {
		scoreThreshold = opts.ScoreThreshold
	}
	criticalSeverity := cfg.Gate.CriticalSeverity
	if cmd.Flags().Changed("critical-severity") {
		criticalSeverity = opts.CriticalSeverity
	}

	store := state.NewStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if err := store.InitSchema(); err != nil {
		return err
	}

	runID := opts.RunID
	if runID == "" {
		latest, err := store.LatestRun()
		if err != nil {
			return err
		}
		if latest == nil {
			return fmt.Errorf("history store has no runs")
		}
		runID = latest.RunID
	}

	checks, err := store.CheckResults(runID)
	if err != nil {
		return err
	}
	if len(checks) == 0 {
		return fmt.Errorf("no check results for run %q", runID)
	}

	// Prefer the score persisted with the run; recompute only for stores
	// written before score history existed.
	score := recomputeScore(checks)
	if stored, err := store.Score(runID); err != nil {
		return err
	} else if stored != nil {
		score = stored.Score
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: score %.2f (threshold %.2f)\n", runID, score, scoreThreshold)

	var blockers []string
	if score < scoreThreshold {
		blockers = append(blockers, fmt.Sprintf("score %.2f below threshold %.2f", score, scoreThreshold))
	}
	for _, check := range checks {
		if check.Status == "fail" && check.Severity >= criticalSeverity {
			blockers = append(blockers,
				fmt.Sprintf("critical check %s failed on %s (severity %d)",
					check.CheckID, check.TableName, check.Severity))
		}
	}

	if len(blockers) > 0 {
		for _, blocker := range blockers {
			fmt.Fprintf(out, "BLOCKED: %s\n", blocker)
		}
		return fmt.Errorf("quality gate failed with %d blocker(s)", len(blockers))
	}

	fmt.Fprintln(out, "Quality gate passed")
	return nil
}

// recomputeScore derives the overall score from persisted rows using the
// default baseline and floor.
func recomputeScore(checks []state.CheckRecord) float64 {
	penalty, weight := report.TotalPenaltyWeight(checks)
	var normalized float64
	if weight > 0 {
		normalized = penalty / weight
	}
	return max(0.0, 100.0-100*normalized)
}
