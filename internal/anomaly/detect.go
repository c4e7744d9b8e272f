package anomaly

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Detection thresholds. Value checks flag at |z| >= threshold; the
// distribution check flags a category shift of at least 15 percentage
// points.
const (
	EventVolumeThreshold       = 3.0
	CompletionRateThreshold    = 3.0
	DistributionShiftThreshold = 0.15
)

// HistoryPoint is one historical metrics snapshot, already filtered to
// the current dataset by the caller.
type HistoryPoint struct {
	RunID          string
	RunTS          string
	DatasetName    string
	EventVolume    int64
	CompletionRate float64
	// DistributionJSON is the run's relative-frequency distribution as a
	// JSON object. Unparseable blobs are skipped when building baselines.
	DistributionJSON string
}

// Record is one flagged deviation. Written once, immutable.
type Record struct {
	Metric         string   `json:"metric"`
	MetricValue    float64  `json:"metric_value"`
	BaselineValue  float64  `json:"baseline_value"`
	BaselineSpread float64  `json:"baseline_spread"`
	ZScore         *float64 `json:"z_score"`
	Threshold      float64  `json:"threshold"`
	Direction      string   `json:"direction"`
	Notes          string   `json:"notes"`
	Details        string   `json:"details"`
	RunTS          string   `json:"run_ts"`
	DatasetName    string   `json:"dataset_name"`
}

// Detect compares the current run's metrics to the historical
// distribution. An empty history produces no findings: the first run
// establishes the baseline and is never flagged.
func Detect(current *RunMetrics, history []HistoryPoint, runTS, dataset string) []Record {
	if len(history) == 0 {
		return nil
	}

	volumes := make([]float64, len(history))
	rates := make([]float64, len(history))
	for i, point := range history {
		volumes[i] = float64(point.EventVolume)
		rates[i] = point.CompletionRate
	}

	var records []Record
	if rec := checkValue("event_volume", float64(current.EventVolume), volumes,
		EventVolumeThreshold, "both", runTS, dataset); rec != nil {
		records = append(records, *rec)
	}
	if rec := checkValue("completion_rate", current.CompletionRate, rates,
		CompletionRateThreshold, "down", runTS, dataset); rec != nil {
		records = append(records, *rec)
	}
	if rec := checkDistributionShift(current, history, runTS, dataset); rec != nil {
		records = append(records, *rec)
	}
	return records
}

// checkValue flags a metric whose robust z-score exceeds the threshold.
// A zero MAD means the baseline had no spread; any deviation from the
// median is then flagged without a z-score.
func checkValue(metric string, current float64, series []float64, threshold float64, direction, runTS, dataset string) *Record {
	if len(series) == 0 {
		return nil
	}
	med := median(series)
	deviations := make([]float64, len(series))
	for i, v := range series {
		deviations[i] = math.Abs(v - med)
	}
	mad := median(deviations)

	if mad == 0 {
		if current == med {
			return nil
		}
		details, _ := json.Marshal(map[string]float64{"median": med, "current": current, "mad": mad})
		return &Record{
			Metric:         metric,
			MetricValue:    current,
			BaselineValue:  med,
			BaselineSpread: mad,
			Threshold:      threshold,
			Direction:      direction,
			Notes:          fmt.Sprintf("%s deviated from median %.2f without variation.", metric, med),
			Details:        string(details),
			RunTS:          runTS,
			DatasetName:    dataset,
		}
	}

	z := (current - med) / mad
	if direction == "down" && z > 0 {
		return nil
	}
	if math.Abs(z) < threshold {
		return nil
	}
	details, _ := json.Marshal(map[string]float64{"median": med, "mad": mad, "z_score": z})
	return &Record{
		Metric:         metric,
		MetricValue:    current,
		BaselineValue:  med,
		BaselineSpread: mad,
		ZScore:         &z,
		Threshold:      threshold,
		Direction:      direction,
		Notes: fmt.Sprintf("%s moved %s to %.4f (median %.4f, mad %.4f).",
			metric, direction, current, med, mad),
		Details:     string(details),
		RunTS:       runTS,
		DatasetName: dataset,
	}
}

// checkDistributionShift builds a per-category baseline from the median of
// each category's historical relative frequency and flags the single
// category with the largest absolute delta, if large enough.
func checkDistributionShift(current *RunMetrics, history []HistoryPoint, runTS, dataset string) *Record {
	baseline := medianDistribution(history)
	if len(baseline) == 0 || len(current.EventTypeDistribution) == 0 {
		return nil
	}

	keys := make(map[string]struct{})
	for key := range baseline {
		keys[key] = struct{}{}
	}
	for key := range current.EventTypeDistribution {
		keys[key] = struct{}{}
	}

	worstKey := ""
	worstDelta := -1.0
	for key := range keys {
		delta := math.Abs(current.EventTypeDistribution[key] - baseline[key])
		if delta > worstDelta || (delta == worstDelta && key < worstKey) {
			worstKey, worstDelta = key, delta
		}
	}
	if worstDelta < DistributionShiftThreshold {
		return nil
	}

	label := worstKey
	if label == "" {
		label = "missing"
	}
	details, _ := json.Marshal(map[string]any{
		"category": worstKey,
		"baseline": baseline[worstKey],
		"current":  current.EventTypeDistribution[worstKey],
		"delta":    worstDelta,
	})
	return &Record{
		Metric:         "event_type_distribution",
		MetricValue:    worstDelta,
		BaselineValue:  baseline[worstKey],
		BaselineSpread: DistributionShiftThreshold,
		Threshold:      DistributionShiftThreshold,
		Direction:      "shift",
		Notes:          fmt.Sprintf("Event type %q shifted by %.2f%% relative to baseline.", label, worstDelta*100),
		Details:        string(details),
		RunTS:          runTS,
		DatasetName:    dataset,
	}
}

// medianDistribution takes, for each category in any historical snapshot,
// the median of its observed relative frequency. Unparseable history rows
// are skipped, not fatal.
func medianDistribution(history []HistoryPoint) map[string]float64 {
	buckets := make(map[string][]float64)
	for _, point := range history {
		if point.DistributionJSON == "" {
			continue
		}
		var dist map[string]float64
		if err := json.Unmarshal([]byte(point.DistributionJSON), &dist); err != nil {
			continue
		}
		for key, value := range dist {
			buckets[key] = append(buckets[key], value)
		}
	}

	baseline := make(map[string]float64, len(buckets))
	for key, values := range buckets {
		baseline[key] = median(values)
	}
	return baseline
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
