package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultRulesFile, cfg.RulesPath)
	assert.Equal(t, DefaultRootCausesFile, cfg.RootCausesPath)
	assert.Equal(t, DefaultSchemaFile, cfg.SchemaPath)
	assert.Equal(t, DefaultStateFile, cfg.StatePath)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, DefaultDataset, cfg.DatasetName)
	assert.Equal(t, "", cfg.DatabasePath)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, DefaultScoreThreshold, cfg.Gate.ScoreThreshold)
	assert.Equal(t, DefaultCriticalSeverity, cfg.Gate.CriticalSeverity)
}

func TestLoadConfigFromFile(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)

	path := filepath.Join(t.TempDir(), "dqsentry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules: config/rules.yaml
state_path: history.db
dataset: orders
gate:
  score_threshold: 95.0
`), 0o644))

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "config/rules.yaml", cfg.RulesPath)
	assert.Equal(t, "history.db", cfg.StatePath)
	assert.Equal(t, "orders", cfg.DatasetName)
	assert.Equal(t, 95.0, cfg.Gate.ScoreThreshold)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultCriticalSeverity, cfg.Gate.CriticalSeverity)
	assert.Equal(t, path, GetConfigFileUsed())
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)

	path := filepath.Join(t.TempDir(), "dqsentry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataset: from_file\n"), 0o644))
	t.Setenv("DQSENTRY_DATASET", "from_env")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.DatasetName)
}

func TestLoadConfigFlagsWin(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)

	t.Setenv("DQSENTRY_DATASET", "from_env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("dataset", "", "")
	flags.String("state", "", "")
	flags.String("out", "", "")
	require.NoError(t, flags.Parse([]string{
		"--dataset", "from_flag",
		"--state", "flag_state.db",
		"--out", "flag_out",
	}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, "from_flag", cfg.DatasetName)
	// --state and --out map onto state_path and out_dir.
	assert.Equal(t, "flag_state.db", cfg.StatePath)
	assert.Equal(t, "flag_out", cfg.OutputDir)
}

func TestLoadConfigUnchangedFlagsIgnored(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("dataset", "flag_default", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, DefaultDataset, cfg.DatasetName)
}
