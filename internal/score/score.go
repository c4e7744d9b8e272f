// Package score aggregates per-rule penalties into an overall quality
// score and per-dimension subscores. The reduction is pure, deterministic,
// and order-independent.
package score

import "github.com/leapstack-labs/dqsentry/internal/evaluate"

// Calculate computes the overall score and the per-dimension subscores:
//
//	score = max(minimum, baseline - 100 * Σpenalty / Σweight)
//
// A total weight of zero yields the baseline. Dimensions with zero total
// weight are omitted from the subscore map.
func Calculate(results []*evaluate.Result, baseline, minimum float64) (float64, map[string]float64) {
	var totalPenalty, totalWeight float64
	penalties := make(map[string]float64)
	weights := make(map[string]float64)

	for _, result := range results {
		totalPenalty += result.Penalty
		totalWeight += result.Rule.Weight

		dim := result.Rule.Dimension
		penalties[dim] += result.Penalty
		weights[dim] += result.Rule.Weight
	}

	var normalized float64
	if totalWeight > 0 {
		normalized = totalPenalty / totalWeight
	}
	overall := max(minimum, baseline-100*normalized)

	subscores := make(map[string]float64)
	for dim, weight := range weights {
		if weight == 0 {
			continue
		}
		subscores[dim] = max(minimum, baseline-100*(penalties[dim]/weight))
	}
	return overall, subscores
}
