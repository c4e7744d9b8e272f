package state

import (
	"fmt"

	"github.com/leapstack-labs/dqsentry/internal/anomaly"
)

// MetricsRecord is one metrics-history row. Counts and distribution are
// JSON objects keyed by event type.
type MetricsRecord struct {
	RunID                 string
	RunTS                 string
	DatasetName           string
	EventVolume           int64
	CompletionCount       int64
	CompletionRate        float64
	EventTypeCounts       string
	EventTypeDistribution string
}

// AppendMetrics appends the current run's metrics. This happens on every
// run, whether or not anomalies were found.
func (s *Store) AppendMetrics(record MetricsRecord) error {
	if s.db == nil {
		return fmt.Errorf("history store not opened")
	}
	if _, err := s.db.Exec(`
		INSERT INTO metrics_history (
			run_id, run_ts, dataset_name, event_volume, completion_count,
			completion_rate, event_type_counts, event_type_distribution
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.RunID, record.RunTS, record.DatasetName, record.EventVolume,
		record.CompletionCount, record.CompletionRate, record.EventTypeCounts,
		record.EventTypeDistribution,
	); err != nil {
		return fmt.Errorf("failed to append metrics: %w", err)
	}
	return nil
}

// MetricsHistory returns the historical metric snapshots for a dataset in
// run order, shaped for the anomaly detector.
func (s *Store) MetricsHistory(dataset string) ([]anomaly.HistoryPoint, error) {
	if s.db == nil {
		return nil, fmt.Errorf("history store not opened")
	}

	rows, err := s.db.Query(`
		SELECT run_id, run_ts, dataset_name, event_volume, completion_rate,
		       event_type_distribution
		FROM metrics_history WHERE dataset_name = ? ORDER BY run_ts`, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var points []anomaly.HistoryPoint
	for rows.Next() {
		var p anomaly.HistoryPoint
		if err := rows.Scan(&p.RunID, &p.RunTS, &p.DatasetName, &p.EventVolume,
			&p.CompletionRate, &p.DistributionJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metrics history: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metrics history: %w", err)
	}
	return points, nil
}
