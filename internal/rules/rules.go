// Package rules defines the declarative check catalog: rule kinds,
// thresholds, root-cause metadata, and the YAML loaders that produce an
// immutable rule set for a validation run.
package rules

// Kind identifies a rule's failure-detection strategy. Each kind maps to
// exactly one evaluator handler.
type Kind string

const (
	KindNullPercentage      Kind = "NULL_PERCENTAGE"
	KindPattern             Kind = "PATTERN"
	KindDateRange           Kind = "DATE_RANGE"
	KindNonNegativeCounts   Kind = "NON_NEGATIVE_COUNTS"
	KindTimestampOrder      Kind = "TIMESTAMP_ORDER"
	KindEnum                Kind = "ENUM"
	KindUniqueMapping       Kind = "UNIQUE_MAPPING"
	KindDuplicatePercentage Kind = "DUPLICATE_PERCENTAGE"
	KindForeignKey          Kind = "FK"
)

// IssueType returns the issue classification for a rule kind.
func (k Kind) IssueType() string {
	switch k {
	case KindNullPercentage:
		return "missing"
	case KindTimestampOrder, KindUniqueMapping:
		return "inconsistency"
	case KindDuplicatePercentage:
		return "duplicate"
	case KindForeignKey:
		return "orphan"
	default:
		return "invalid"
	}
}

// Valid reports whether k is a recognized rule kind.
func (k Kind) Valid() bool {
	switch k {
	case KindNullPercentage, KindPattern, KindDateRange, KindNonNegativeCounts,
		KindTimestampOrder, KindEnum, KindUniqueMapping, KindDuplicatePercentage,
		KindForeignKey:
		return true
	}
	return false
}

// Threshold holds the failure-rate cutoffs for a rule. Fail is assumed to
// be >= Warning; the loader does not enforce it.
type Threshold struct {
	Warning float64 `koanf:"warning"`
	Fail    float64 `koanf:"fail"`
}

// RootCause is a configured (cause, fix) pair surfaced in the issue log
// when the owning rule fails.
type RootCause struct {
	ProbableCause  string `koanf:"probable_cause" json:"probable_cause"`
	RecommendedFix string `koanf:"recommended_fix" json:"recommended_fix"`
}

// CheckRule is one declarative validation rule. Rules are constructed once
// per run by LoadCatalog and are immutable afterward.
type CheckRule struct {
	ID          string
	Table       string
	Dimension   string
	Description string

	// Columns targets specific columns; ColumnRegex targets columns by
	// name across tables (used by NON_NEGATIVE_COUNTS).
	Columns     []string
	ColumnRegex string

	Kind Kind
	Args []string

	Severity  int
	Weight    float64
	Threshold Threshold

	RootCauses []RootCause
}

// Catalog is the loaded rule set plus the scoring configuration that
// accompanies it.
type Catalog struct {
	Rules    []*CheckRule
	Baseline float64
	Minimum  float64
}

// AttachRootCauses joins root-cause candidates onto rules by rule id.
// Rules without a match keep an empty list.
func (c *Catalog) AttachRootCauses(causes map[string][]RootCause) {
	for _, rule := range c.Rules {
		if matched, ok := causes[rule.ID]; ok {
			rule.RootCauses = matched
		}
	}
}
