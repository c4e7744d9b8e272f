// Package config loads the CLI configuration. Precedence, highest to
// lowest: flags, environment variables, config file, defaults.
package config

// Defaults applied before any config file, env var, or flag.
const (
	DefaultRulesFile      = "rules.yaml"
	DefaultRootCausesFile = "root_causes.yaml"
	DefaultSchemaFile     = "schema.yaml"
	DefaultStateFile      = "dqsentry_state.db"
	DefaultOutputDir      = "out"
	DefaultDataset        = "events"

	DefaultScoreThreshold   = 90.0
	DefaultCriticalSeverity = 5
)

// GateConfig holds the release-gate policy.
type GateConfig struct {
	// ScoreThreshold is the minimum acceptable overall score.
	ScoreThreshold float64 `koanf:"score_threshold"`
	// CriticalSeverity is the severity at or above which a failed check
	// blocks the gate.
	CriticalSeverity int `koanf:"critical_severity"`
}

// Config is the resolved CLI configuration.
type Config struct {
	RulesPath      string `koanf:"rules"`
	RootCausesPath string `koanf:"root_causes"`
	SchemaPath     string `koanf:"schema"`
	DatabasePath   string `koanf:"database"`
	StatePath      string `koanf:"state_path"`
	OutputDir      string `koanf:"out_dir"`
	DatasetName    string `koanf:"dataset"`
	Verbose        bool   `koanf:"verbose"`

	Gate GateConfig `koanf:"gate"`
}
