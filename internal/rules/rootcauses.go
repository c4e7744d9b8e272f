package rules

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// rootCauseDoc mirrors the root-cause YAML document: candidates keyed by
// rule id under a top-level "checks" mapping. A single mapping or a list
// of mappings are both accepted per rule.
type rootCauseDoc struct {
	Checks map[string][]RootCause `koanf:"checks"`
}

// LoadRootCauses reads the root-cause configuration at path. A missing
// file is not an error: rules simply get no candidates. Entries lacking a
// probable cause or a recommended fix are dropped.
func LoadRootCauses(path string) (map[string][]RootCause, error) {
	if path == "" {
		return map[string][]RootCause{}, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string][]RootCause{}, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to read root causes %s: %w", path, err)
	}

	var doc rootCauseDoc
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("failed to decode root causes %s: %w", path, err)
	}

	causes := make(map[string][]RootCause, len(doc.Checks))
	for id, entries := range doc.Checks {
		kept := make([]RootCause, 0, len(entries))
		for _, rc := range entries {
			if rc.ProbableCause == "" || rc.RecommendedFix == "" {
				continue
			}
			kept = append(kept, rc)
		}
		if len(kept) > 0 {
			causes[id] = kept
		}
	}
	return causes, nil
}
