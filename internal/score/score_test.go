package score

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dqsentry/internal/evaluate"
	"github.com/leapstack-labs/dqsentry/internal/rules"
)

func result(dimension string, weight, penalty float64) *evaluate.Result {
	return &evaluate.Result{
		Rule:    &rules.CheckRule{Dimension: dimension, Weight: weight},
		Penalty: penalty,
	}
}

func TestCalculate(t *testing.T) {
	results := []*evaluate.Result{
		result("completeness", 2.0, 0.1),
		result("completeness", 1.0, 0.0),
		result("validity", 1.0, 0.05),
	}

	overall, subscores := Calculate(results, 100.0, 0.0)

	// 100 - 100 * (0.15 / 4.0)
	assert.InDelta(t, 96.25, overall, 1e-9)
	require.Contains(t, subscores, "completeness")
	require.Contains(t, subscores, "validity")
	// 100 - 100 * (0.1 / 3.0)
	assert.InDelta(t, 96.6666667, subscores["completeness"], 1e-6)
	// 100 - 100 * (0.05 / 1.0)
	assert.InDelta(t, 95.0, subscores["validity"], 1e-9)
}

func TestCalculateNoResults(t *testing.T) {
	overall, subscores := Calculate(nil, 100.0, 0.0)
	assert.Equal(t, 100.0, overall)
	assert.Empty(t, subscores)
}

func TestCalculateFloor(t *testing.T) {
	results := []*evaluate.Result{result("validity", 1.0, 5.0)}
	overall, subscores := Calculate(results, 100.0, 0.0)
	assert.Equal(t, 0.0, overall)
	assert.Equal(t, 0.0, subscores["validity"])

	overall, _ = Calculate(results, 100.0, 25.0)
	assert.Equal(t, 25.0, overall)
}

func TestCalculateZeroWeightDimensionSkipped(t *testing.T) {
	results := []*evaluate.Result{
		result("completeness", 1.0, 0.1),
		result("freshness", 0.0, 0.0),
	}
	_, subscores := Calculate(results, 100.0, 0.0)
	assert.Contains(t, subscores, "completeness")
	assert.NotContains(t, subscores, "freshness")
}

func TestCalculateOrderIndependent(t *testing.T) {
	results := []*evaluate.Result{
		result("a", 1.0, 0.02),
		result("b", 2.0, 0.3),
		result("a", 0.5, 0.0),
		result("c", 1.5, 0.11),
	}

	wantOverall, wantSub := Calculate(results, 100.0, 0.0)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]*evaluate.Result, len(results))
		copy(shuffled, results)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		overall, sub := Calculate(shuffled, 100.0, 0.0)
		assert.InDelta(t, wantOverall, overall, 1e-12)
		assert.Equal(t, wantSub, sub)
	}
}

func TestCalculateIdempotent(t *testing.T) {
	results := []*evaluate.Result{result("validity", 1.0, 0.2)}
	first, _ := Calculate(results, 100.0, 0.0)
	second, _ := Calculate(results, 100.0, 0.0)
	assert.Equal(t, first, second)
}
