package rules

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// catalogDoc mirrors the rule catalog YAML document.
type catalogDoc struct {
	Checks map[string][]checkEntry `koanf:"checks"`
	Score  scoreConfig             `koanf:"score"`
}

type checkEntry struct {
	ID          string     `koanf:"id"`
	Table       string     `koanf:"table"`
	Column      string     `koanf:"column"`
	Columns     []string   `koanf:"columns"`
	ColumnRegex string     `koanf:"column_regex"`
	Rule        string     `koanf:"rule"`
	Severity    *int       `koanf:"severity"`
	Weight      *float64   `koanf:"weight"`
	Threshold   *Threshold `koanf:"threshold"`
	Description string     `koanf:"description"`
}

type scoreConfig struct {
	Baseline *float64 `koanf:"baseline"`
	Min      *float64 `koanf:"min"`
}

// LoadCatalog parses the rule catalog document at path. Rules are grouped
// by dimension in the document; each entry must supply a unique id, a
// target table, and a rule spec. A malformed document is fatal: the run
// cannot proceed without a valid rule set.
func LoadCatalog(path string) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to read rule catalog %s: %w", path, err)
	}

	var doc catalogDoc
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("failed to decode rule catalog %s: %w", path, err)
	}

	catalog := &Catalog{Baseline: 100.0, Minimum: 0.0}
	if doc.Score.Baseline != nil {
		catalog.Baseline = *doc.Score.Baseline
	}
	if doc.Score.Min != nil {
		catalog.Minimum = *doc.Score.Min
	}

	seen := make(map[string]bool)
	for dimension, entries := range doc.Checks {
		for _, entry := range entries {
			rule, err := buildRule(dimension, entry)
			if err != nil {
				return nil, fmt.Errorf("rule catalog %s: %w", path, err)
			}
			if seen[rule.ID] {
				return nil, fmt.Errorf("rule catalog %s: duplicate rule id %q", path, rule.ID)
			}
			seen[rule.ID] = true
			catalog.Rules = append(catalog.Rules, rule)
		}
	}
	return catalog, nil
}

func buildRule(dimension string, entry checkEntry) (*CheckRule, error) {
	if entry.ID == "" {
		return nil, fmt.Errorf("dimension %q: rule is missing an id", dimension)
	}
	if entry.Table == "" {
		return nil, fmt.Errorf("rule %q: missing target table", entry.ID)
	}

	kind, args, err := ParseSpec(entry.Rule)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", entry.ID, err)
	}

	columns := entry.Columns
	if len(columns) == 0 && entry.Column != "" {
		columns = []string{entry.Column}
	}

	rule := &CheckRule{
		ID:          entry.ID,
		Table:       entry.Table,
		Dimension:   dimension,
		Description: entry.Description,
		Columns:     columns,
		ColumnRegex: entry.ColumnRegex,
		Kind:        kind,
		Args:        args,
		Severity:    1,
		Weight:      1.0,
		RootCauses:  []RootCause{},
	}
	if entry.Severity != nil {
		rule.Severity = *entry.Severity
	}
	if entry.Weight != nil {
		rule.Weight = *entry.Weight
	}
	if entry.Threshold != nil {
		rule.Threshold = *entry.Threshold
	}
	return rule, nil
}
