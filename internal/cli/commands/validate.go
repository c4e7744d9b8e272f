// Package commands implements the dqsentry subcommands.
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dqsentry/internal/cli/config"
	"github.com/leapstack-labs/dqsentry/internal/runner"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	RunID      string
	JSONOutput bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run every configured check against the staged data",
		Long: `Evaluate the rule catalog against the staged DuckDB tables, compute
the quality score, detect metric anomalies and schema drift, and append
everything to the history store and the output directory.`,
		Example: `  # Validate with the default configuration
  dqsentry validate

  # Validate a specific staged database
  dqsentry validate --database warehouse.duckdb --dataset events

  # Emit the run summary as JSON for CI/CD integration
  dqsentry validate --json`,
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "Override the generated run identifier")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Output the run summary as JSON")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions) error {
	cfg := config.GetCurrentConfig()
	logger := config.GetLogger(cmd.Context())

	if err := ensureDir(filepath.Dir(cfg.StatePath)); err != nil {
		return err
	}

	r := runner.New(runner.Config{
		RulesPath:      cfg.RulesPath,
		RootCausesPath: cfg.RootCausesPath,
		SchemaPath:     cfg.SchemaPath,
		DatabasePath:   cfg.DatabasePath,
		StatePath:      cfg.StatePath,
		OutputDir:      cfg.OutputDir,
		DatasetName:    cfg.DatasetName,
		RunID:          opts.RunID,
		Logger:         logger,
	})

	summary, err := r.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if opts.JSONOutput {
		return printSummaryJSON(cmd, summary)
	}
	printSummaryText(cmd, summary)
	return nil
}

func printSummaryText(cmd *cobra.Command, summary *runner.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s)\n", summary.RunID, summary.DatasetName)
	fmt.Fprintf(out, "Score: %.2f (baseline %.1f)\n", summary.Score, summary.Baseline)
	fmt.Fprintf(out, "Checks: %d total, %d with failures\n", summary.TotalChecks, summary.FailedChecks)
	for _, result := range summary.Results {
		if result.FailureCount == 0 {
			continue
		}
		fmt.Fprintf(out, "  [%s] %s on %s: %d/%d rows (%.2f%%)\n",
			result.Status, result.Rule.ID, result.Table,
			result.FailureCount, result.TotalRows, result.FailureRate*100)
	}
	if len(summary.Anomalies) > 0 {
		fmt.Fprintf(out, "Anomalies: %d\n", len(summary.Anomalies))
		for _, rec := range summary.Anomalies {
			fmt.Fprintf(out, "  %s: %s\n", rec.Metric, rec.Notes)
		}
	}
	if len(summary.Drift) > 0 {
		fmt.Fprintf(out, "Schema drift: %d tables\n", len(summary.Drift))
		for _, rec := range summary.Drift {
			fmt.Fprintf(out, "  %s: %s\n", rec.Table, rec.Notes)
		}
	}
}

func printSummaryJSON(cmd *cobra.Command, summary *runner.Summary) error {
	type checkLine struct {
		CheckID     string  `json:"check_id"`
		Table       string  `json:"table"`
		Status      string  `json:"status"`
		FailureRate float64 `json:"failure_rate"`
		Failures    int64   `json:"failures"`
	}
	checks := make([]checkLine, 0, len(summary.Results))
	for _, result := range summary.Results {
		checks = append(checks, checkLine{
			CheckID:     result.Rule.ID,
			Table:       result.Table,
			Status:      string(result.Status),
			FailureRate: result.FailureRate,
			Failures:    result.FailureCount,
		})
	}

	payload := map[string]any{
		"run_id":        summary.RunID,
		"run_ts":        summary.RunTS.Format(time.RFC3339),
		"dataset_name":  summary.DatasetName,
		"score":         summary.Score,
		"total_checks":  summary.TotalChecks,
		"failed_checks": summary.FailedChecks,
		"checks":        checks,
		"anomalies":     summary.Anomalies,
		"drift":         summary.Drift,
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func ensureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
