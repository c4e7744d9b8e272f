// Package cli provides the command-line interface for dqsentry.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/dqsentry/internal/cli/commands"
	"github.com/leapstack-labs/dqsentry/internal/cli/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dqsentry",
		Short: "dqsentry - Data Quality Sentry",
		Long: `dqsentry validates staged tabular data against a declarative rule
catalog, scores the result, and tracks anomalies and schema drift across
runs.

Checks run as set-based SQL against DuckDB staging tables; outcomes are
appended to a SQLite history store and exported as JSON, CSV, and parquet
artifacts.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			var err error
			cfg, err = config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			cmd.SetContext(context.WithValue(cmd.Context(), config.LoggerKey(), logger))

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					fmt.Fprintf(os.Stderr, "Using config file: %s\n", configFile)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Built with Go and DuckDB
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./dqsentry.yaml)")
	rootCmd.PersistentFlags().String("rules", "", "Path to the rule catalog")
	rootCmd.PersistentFlags().String("root-causes", "", "Path to the root-cause configuration")
	rootCmd.PersistentFlags().String("schema", "", "Path to the expected schema configuration")
	rootCmd.PersistentFlags().String("database", "", "Path to the staged DuckDB database (empty for in-memory)")
	rootCmd.PersistentFlags().String("state", "", "Path to the history store")
	rootCmd.PersistentFlags().String("out", "", "Output directory for run artifacts")
	rootCmd.PersistentFlags().String("dataset", "", "Dataset name recorded with each run")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewScoreCommand())
	rootCmd.AddCommand(commands.NewGateCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
