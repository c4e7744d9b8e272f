// Package evaluate executes check rules against the staged data store.
// Each rule kind has one handler that expresses its failure predicate as
// a set-based query; the evaluator turns the query into a failure count,
// a failure rate, a status, a penalty, and up to SampleLimit failing rows.
package evaluate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/dqsentry/internal/adapter"
	"github.com/leapstack-labs/dqsentry/internal/rules"
	"github.com/leapstack-labs/dqsentry/internal/stage"
)

// SampleLimit caps the number of representative failing rows per result.
const SampleLimit = 5

// Status is the outcome classification of one check.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Result is the outcome of evaluating one rule for one run. Results are
// created once and never mutated.
type Result struct {
	Rule       *rules.CheckRule
	Table      string
	StageTable string

	FailureCount int64
	TotalRows    int64
	FailureRate  float64

	Status    Status
	Penalty   float64
	IssueType string

	// Samples holds up to SampleLimit failing rows; a nil value is a SQL
	// NULL.
	Samples []map[string]*string
}

// handler evaluates one rule kind.
type handler func(ctx context.Context, e *Evaluator, rule *rules.CheckRule) (*Result, error)

// handlers dispatches rule kinds to their evaluation strategy. Adding a
// rule kind means adding one entry here plus its handler.
var handlers = map[rules.Kind]handler{
	rules.KindNullPercentage:      evalNullPercentage,
	rules.KindPattern:             evalPattern,
	rules.KindDateRange:           evalDateRange,
	rules.KindNonNegativeCounts:   evalNonNegativeCounts,
	rules.KindTimestampOrder:      evalTimestampOrder,
	rules.KindEnum:                evalEnum,
	rules.KindUniqueMapping:       evalUniqueMapping,
	rules.KindDuplicatePercentage: evalDuplicatePercentage,
	rules.KindForeignKey:          evalForeignKey,
}

// Evaluator runs check rules against a staged data store using the stage
// metadata snapshot collected at the start of the run.
type Evaluator struct {
	meta   *stage.Metadata
	db     adapter.Adapter
	logger *slog.Logger
}

// New creates an evaluator. A nil logger discards output.
func New(meta *stage.Metadata, db adapter.Adapter, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Evaluator{meta: meta, db: db, logger: logger}
}

// Evaluate dispatches a rule to its handler. An unrecognized rule kind is
// a fatal configuration error, never a silent skip.
func (e *Evaluator) Evaluate(ctx context.Context, rule *rules.CheckRule) (*Result, error) {
	h, ok := handlers[rule.Kind]
	if !ok {
		return nil, fmt.Errorf("no handler for rule type %q", rule.Kind)
	}

	e.logger.Debug("evaluating rule", "id", rule.ID, "kind", string(rule.Kind), "table", rule.Table)
	result, err := h(ctx, e, rule)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", rule.ID, err)
	}
	e.logger.Debug("rule evaluated",
		"id", rule.ID,
		"failures", result.FailureCount,
		"rate", result.FailureRate,
		"status", string(result.Status))
	return result, nil
}

// penalty computes a rule's score contribution: proportional to failure
// rate, severity, and weight.
func penalty(rule *rules.CheckRule, failureRate float64) float64 {
	return failureRate * (float64(rule.Severity) / 5) * rule.Weight
}

// status classifies a failure rate against the rule's thresholds. A check
// with no failing rows always passes, even when both thresholds are 0.
func status(rule *rules.CheckRule, failureRate float64) Status {
	if failureRate == 0 {
		return StatusPass
	}
	if failureRate >= rule.Threshold.Fail {
		return StatusFail
	}
	if failureRate >= rule.Threshold.Warning {
		return StatusWarn
	}
	return StatusPass
}

// evalCondition wraps a WHERE condition over a staged table as the
// failure query.
func (e *Evaluator) evalCondition(ctx context.Context, rule *rules.CheckRule, stageTable, condition string) (*Result, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s", adapter.QuoteIdent(stageTable), condition)
	return e.evalQuery(ctx, rule, stageTable, query)
}

// evalQuery executes a failure query: the failure count is the
// cardinality of the query, total rows come from the stage metadata
// snapshot, and samples are the first SampleLimit matching rows.
func (e *Evaluator) evalQuery(ctx context.Context, rule *rules.CheckRule, stageTable, query string) (*Result, error) {
	failureCount, err := e.db.Count(ctx, fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS dq_failures", query))
	if err != nil {
		return nil, err
	}
	samples, err := e.fetchSamples(ctx, query, SampleLimit)
	if err != nil {
		return nil, err
	}

	totalRows := e.meta.Counts[stageTable]
	var failureRate float64
	if totalRows > 0 {
		failureRate = float64(failureCount) / float64(totalRows)
	}

	return &Result{
		Rule:         rule,
		Table:        rule.Table,
		StageTable:   stageTable,
		FailureCount: failureCount,
		TotalRows:    totalRows,
		FailureRate:  failureRate,
		Status:       status(rule, failureRate),
		Penalty:      penalty(rule, failureRate),
		IssueType:    rule.Kind.IssueType(),
		Samples:      samples,
	}, nil
}
