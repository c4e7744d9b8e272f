package rules

import (
	"fmt"
	"strings"
)

// ParseSpec parses a rule specification of the form `NAME(arg1, arg2)` or
// bare `NAME` into a kind and its ordered argument list. Empty argument
// tokens are dropped. An unrecognized name is a configuration error: new
// rule kinds must be added to the evaluator before use.
func ParseSpec(text string) (Kind, []string, error) {
	text = strings.TrimSpace(text)
	name := text
	var args []string
	if idx := strings.Index(text, "("); idx >= 0 && strings.HasSuffix(text, ")") {
		name = text[:idx]
		for _, arg := range strings.Split(text[idx+1:len(text)-1], ",") {
			if arg = strings.TrimSpace(arg); arg != "" {
				args = append(args, arg)
			}
		}
	}
	kind := Kind(strings.ToUpper(strings.TrimSpace(name)))
	if !kind.Valid() {
		return "", nil, fmt.Errorf("unrecognized rule type %q", name)
	}
	return kind, args, nil
}
