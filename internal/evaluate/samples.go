package evaluate

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// fetchSamples returns up to limit rows matching the failure query, each
// value stringified: timestamps as RFC 3339 text, bytes as text, SQL NULL
// as nil.
func (e *Evaluator) fetchSamples(ctx context.Context, query string, limit int) ([]map[string]*string, error) {
	rows, err := e.db.Query(ctx, fmt.Sprintf("SELECT * FROM (%s) AS dq_samples LIMIT %d", query, limit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var samples []map[string]*string
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		sample := make(map[string]*string, len(columns))
		for i, col := range columns {
			sample[col] = stringify(values[i])
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

func stringify(value any) *string {
	if value == nil {
		return nil
	}
	var text string
	switch v := value.(type) {
	case time.Time:
		text = v.UTC().Format(time.RFC3339)
	case []byte:
		text = string(v)
	case string:
		text = v
	default:
		text = fmt.Sprintf("%v", v)
	}
	return &text
}

// sortedKeys keeps cross-table scans deterministic.
func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
