// Package anomaly computes per-run metrics over the staged event stream
// and flags statistical outliers against the run's historical baseline.
// The baseline uses median and median absolute deviation, so a single
// bad historical run cannot poison it.
package anomaly

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/dqsentry/internal/adapter"
)

const eventsTable = "staging_events"

// RunMetrics holds the per-run aggregate facts anomaly detection compares
// across runs. Computed fresh each run and appended to the metrics
// history store, never mutated.
type RunMetrics struct {
	EventVolume     int64
	CompletionCount int64
	CompletionRate  float64

	EventTypeCounts       map[string]int64
	EventTypeDistribution map[string]float64
}

// CollectMetrics computes the current run's metrics from the staged event
// table.
func CollectMetrics(ctx context.Context, db adapter.Adapter) (*RunMetrics, error) {
	table := adapter.QuoteIdent(eventsTable)

	volume, err := db.Count(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	completions, err := db.Count(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE event_type = 'complete'", table))
	if err != nil {
		return nil, fmt.Errorf("failed to count completions: %w", err)
	}

	metrics := &RunMetrics{
		EventVolume:           volume,
		CompletionCount:       completions,
		EventTypeCounts:       make(map[string]int64),
		EventTypeDistribution: make(map[string]float64),
	}
	if volume == 0 {
		return metrics, nil
	}
	metrics.CompletionRate = float64(completions) / float64(volume)

	rows, err := db.Query(ctx, fmt.Sprintf("SELECT event_type, COUNT(*) FROM %s GROUP BY event_type", table))
	if err != nil {
		return nil, fmt.Errorf("failed to query event distribution: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var eventType *string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event distribution: %w", err)
		}
		key := ""
		if eventType != nil {
			key = *eventType
		}
		metrics.EventTypeCounts[key] = count
		metrics.EventTypeDistribution[key] = float64(count) / float64(volume)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event distribution: %w", err)
	}
	return metrics, nil
}
