package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dqsentry/internal/cli/config"
	"github.com/leapstack-labs/dqsentry/internal/state"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent run scores",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Number of runs to show")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
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

	scores, err := store.ScoreHistory(opts.Limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(scores) == 0 {
		fmt.Fprintln(out, "(no runs)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Timestamp", "Dataset", "Score", "Checks", "Failed"})
	for _, score := range scores {
		t.AppendRow(table.Row{
			score.RunID,
			score.RunTS,
			score.DatasetName,
			fmt.Sprintf("%.2f", score.Score),
			score.TotalChecks,
			score.FailedChecks,
		})
	}
	t.Render()
	fmt.Fprintf(out, "(%d runs)\n", len(scores))
	return nil
}
