package evaluate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/dqsentry/internal/adapter"
	"github.com/leapstack-labs/dqsentry/internal/rules"
)

func firstColumn(rule *rules.CheckRule) (string, error) {
	if len(rule.Columns) == 0 {
		return "", fmt.Errorf("rule targets no columns")
	}
	return rule.Columns[0], nil
}

// evalNullPercentage fails rows where the target column is null.
func evalNullPercentage(ctx context.Context, e *Evaluator, rule *rules.CheckRule) (*Result, error) {
	stageTable, err := e.meta.Resolve(rule.Table)
	if err != nil {
		return nil, err
	}
	column, err := firstColumn(rule)
	if err != nil {
		return nil, err
	}
	condition := fmt.Sprintf("%s IS NULL", adapter.QuoteIdent(column))
	return e.evalCondition(ctx, rule, stageTable, condition)
}

// evalPattern fails non-null rows whose trimmed value does not match the
// regular expression given as the rule's single argument.
func evalPattern(ctx context.Context, e *Evaluator, rule *rules.CheckRule) (*Result, error) {
	stageTable, err := e.meta.Resolve(rule.Table)
	if err != nil {
		return nil, err
	}
	column, err := firstColumn(rule)
	if err != nil {
		return nil, err
	}
	if len(rule.Args) < 1 {
		return nil, fmt.Errorf("PATTERN requires a regex argument")
	}
	col := adapter.QuoteIdent(column)
	condition := fmt.Sprintf("%s IS NOT NULL AND NOT REGEXP_MATCHES(TRIM(%s), %s)",
		col, col, adapter.QuoteLiteral(rule.Args[0]))
	return e.evalCondition(ctx, rule, stageTable, condition)
}

// timestampLiteral renders a DATE_RANGE bound. The literal "now" means the
// current timestamp; an empty bound is not checked.
func timestampLiteral(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if strings.EqualFold(value, "now") {
		return "CURRENT_TIMESTAMP"
	}
	return "TIMESTAMP " + adapter.QuoteLiteral(value)
}

// evalDateRange fails non-null rows falling before the start bound or
// after the end bound. With neither bound present, no row fails.
func evalDateRange(ctx context.Context, e *Evaluator, rule *rules.CheckRule) (*Result, error) {
	stageTable, err := e.meta.Resolve(rule.Table)
	if err != nil {
		return nil, err
	}
	column, err := firstColumn(rule)
	if err != nil {
		return nil, err
	}

	var start, end string
	if len(rule.Args) > 0 {
		start = timestampLiteral(rule.Args[0])
	}
	if len(rule.Args) > 1 {
		end = timestampLiteral(rule.Args[1])
	}

	col := adapter.QuoteIdent(column)
	var clauses []string
	if start != "" {
		clauses = append(clauses, fmt.Sprintf("%s < %s", col, start))
	}
	if end != "" {
		clauses = append(clauses, fmt.Sprintf("%s > %s", col, end))
	}
	condition := "0=1"
	if len(clauses) > 0 {
		condition = fmt.Sprintf("%s IS NOT NULL AND (%s)", col, strings.Join(clauses, " OR "))
	}
	return e.evalCondition(ctx, rule, stageTable, condition)
}

// evalNonNegativeCounts scans every staged table for columns whose name
// matches the rule's column_regex (case-insensitive) and fails rows with
// negative values. This is deliberately a cross-table scan, not scoped to
// the rule's declared table; total rows is the sum over matched tables.
func evalNonNegativeCounts(ctx context.Context, e *Evaluator, rule *rules.CheckRule) (*Result, error) {
	re, err := regexp.Compile("(?i)" + rule.ColumnRegex)
	if err != nil {
		return nil, fmt.Errorf("invalid column_regex %q: %w", rule.ColumnRegex, err)
	}

	type match struct{ table, column string }
	var matches []match
	for _, stageTable := range sortedKeys(e.meta.Columns) {
		for _, column := range e.meta.Columns[stageTable] {
			if re.MatchString(column) {
				matches = append(matches, match{stageTable, column})
			}
		}
	}

	var failureCount, totalRows int64
	samples := make([]map[string]*string, 0, SampleLimit)
	for _, m := range matches {
		totalRows += e.meta.Counts[m.table]
		query := fmt.Sprintf("SELECT *, %s AS failed_column FROM %s WHERE %s < 0",
			adapter.QuoteLiteral(m.column), adapter.QuoteIdent(m.table), adapter.QuoteIdent(m.column))

		count, err := e.db.Count(ctx, fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS dq_failures", query))
		if err != nil {
			return nil, err
		}
		failureCount += count

		if len(samples) < SampleLimit {
			batch, err := e.fetchSamples(ctx, query, SampleLimit-len(samples))
			if err != nil {
				return nil, err
			}
			samples = append(samples, batch...)
		}
	}

	var failureRate float64
	if totalRows > 0 {
		failureRate = float64(failureCount) / float64(totalRows)
	}
	return &Result{
		Rule:         rule,
		Table:        rule.Table,
		StageTable:   "*",
		FailureCount: failureCount,
		TotalRows:    totalRows,
		FailureRate:  failureRate,
		Status:       status(rule, failureRate),
		Penalty:      penalty(rule, failureRate),
		IssueType:    rule.Kind.IssueType(),
		Samples:      samples,
	}, nil
}

// evalTimestampOrder fails rows where, in the configured column sequence,
// a later column is non-null while its immediate predecessor is null or
// comes after it.
func evalTimestampOrder(ctx context.Context, e *Evaluator, rule *rules.CheckRule) (*Result, error) {
	stageTable, err := e.meta.Resolve(rule.Table)
	if err != nil {
		return nil, err
	}

	var clauses []string
	for i := 1; i < len(rule.Columns); i++ {
		prev := adapter.QuoteIdent(rule.Columns[i-1])
		next := adapter.QuoteIdent(rule.Columns[i])
		clauses = append(clauses, fmt.Sprintf("%s IS NOT NULL AND (%s IS NULL OR %s > %s)",
			next, prev, prev, next))
	}
	condition := "0=1"
	if len(clauses) > 0 {
		condition = strings.Join(clauses, " OR ")
	}
	return e.evalCondition(ctx, rule, stageTable, condition)
}

// evalEnum fails non-null rows whose trimmed, lowercased value is not in
// the allowed set given by the rule arguments.
func evalEnum(ctx context.Context, e *Evaluator, rule *rules.CheckRule) (*Result, error) {
	stageTable, err := e.meta.Resolve(rule.Table)
	if err != nil {
		return nil, err
	}
	column, err := firstColumn(rule)
	if err != nil {
		return nil, err
	}
	if len(rule.Args) == 0 {
		return nil, fmt.Errorf("ENUM requires at least one allowed value")
	}

	allowed := make([]string, len(rule.Args))
	for i, arg := range rule.Args {
		allowed[i] = adapter.QuoteLiteral(strings.ToLower(arg))
	}
	col := adapter.QuoteIdent(column)
	condition := fmt.Sprintf("%s IS NOT NULL AND LOWER(TRIM(%s)) NOT IN (%s)",
		col, col, strings.Join(allowed, ", "))
	return e.evalCondition(ctx, rule, stageTable, condition)
}

// evalUniqueMapping fails every row whose key column maps to more than one
// distinct value of the mapped column (a functional-dependency violation).
func evalUniqueMapping(ctx context.Context, e *Evaluator, rule *rules.CheckRule) (*Result, error) {
	stageTable, err := e.meta.Resolve(rule.Table)
	if err != nil {
		return nil, err
	}
	if len(rule.Args) < 2 {
		return nil, fmt.Errorf("UNIQUE_MAPPING requires key and value column arguments")
	}
	key := adapter.QuoteIdent(rule.Args[0])
	value := adapter.QuoteIdent(rule.Args[1])
	table := adapter.QuoteIdent(stageTable)

	query := fmt.Sprintf(`
		WITH inconsistent AS (
			SELECT %[1]s
			FROM %[3]s
			WHERE %[1]s IS NOT NULL
			GROUP BY %[1]s
			HAVING COUNT(DISTINCT %[2]s) > 1
		)
		SELECT t.*
		FROM %[3]s t
		JOIN inconsistent i ON i.%[1]s = t.%[1]s`, key, value, table)
	return e.evalQuery(ctx, rule, stageTable, query)
}

// evalDuplicatePercentage fails rows that are not the first within a group
// sharing all listed columns. The first row is decided by ordering on the
// first listed column; this tiebreak is a kept policy choice, not a
// requirement of the duplicate definition.
func evalDuplicatePercentage(ctx context.Context, e *Evaluator, rule *rules.CheckRule) (*Result, error) {
	stageTable, err := e.meta.Resolve(rule.Table)
	if err != nil {
		return nil, err
	}
	if len(rule.Columns) == 0 {
		return nil, fmt.Errorf("DUPLICATE_PERCENTAGE requires at least one column")
	}

	partition := make([]string, len(rule.Columns))
	for i, col := range rule.Columns {
		partition[i] = adapter.QuoteIdent(col)
	}
	query := fmt.Sprintf(`
		SELECT *
		FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) AS dq_rank
			FROM %s
		) dq
		WHERE dq.dq_rank > 1`,
		strings.Join(partition, ", "), partition[0], adapter.QuoteIdent(stageTable))
	return e.evalQuery(ctx, rule, stageTable, query)
}

// evalForeignKey fails non-null rows with no matching row in the
// referenced table's referenced column (left anti-join). The reference is
// the rule's single argument in table.column form.
func evalForeignKey(ctx context.Context, e *Evaluator, rule *rules.CheckRule) (*Result, error) {
	stageTable, err := e.meta.Resolve(rule.Table)
	if err != nil {
		return nil, err
	}
	column, err := firstColumn(rule)
	if err != nil {
		return nil, err
	}
	if len(rule.Args) < 1 {
		return nil, fmt.Errorf("FK requires a table.column reference argument")
	}
	refTable, refColumn, ok := strings.Cut(rule.Args[0], ".")
	if !ok {
		return nil, fmt.Errorf("FK reference %q is not in table.column form", rule.Args[0])
	}
	refStage, err := e.meta.Resolve(refTable)
	if err != nil {
		return nil, err
	}

	col := adapter.QuoteIdent(column)
	ref := adapter.QuoteIdent(refColumn)
	query := fmt.Sprintf(`
		SELECT src.*
		FROM %s src
		LEFT JOIN %s ref
		  ON src.%s = ref.%s
		WHERE src.%s IS NOT NULL
		  AND ref.%s IS NULL`,
		adapter.QuoteIdent(stageTable), adapter.QuoteIdent(refStage), col, ref, col, ref)
	return e.evalQuery(ctx, rule, stageTable, query)
}
