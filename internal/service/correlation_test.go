package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epsilon-backend/internal/models"
)

func row(date string, values map[string]interface{}) models.Observation {
	return models.Observation{Date: date, Values: values}
}

func resultFor(t *testing.T, results []models.CorrelationResult, v1, v2 string) models.CorrelationResult {
	t.Helper()
	for _, res := range results {
		if res.Variable1 == v1 && res.Variable2 == v2 {
			return res
		}
	}
	t.Fatalf("no result for pair (%s, %s)", v1, v2)
	return models.CorrelationResult{}
}

func TestPearsonCorrelation(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		y    []float64
		want float64
	}{
		{"perfect positive", []float64{1, 2, 3}, []float64{2, 4, 6}, 1},
		{"strong negative", []float64{1, 2, 3, 4, 5}, []float64{5, 3, 4, 1, 2}, -0.8},
		{"moderate positive", []float64{1, 2, 3, 4, 5}, []float64{2, 1, 4, 3, 7}, 0.824163},
		{"near perfect negative", []float64{1, 2, 3, 4, 5, 6, 7, 8}, []float64{8, 7, 5, 6, 4, 3, 2, 1}, -0.976190},
		{"empty", nil, nil, 0},
		{"length mismatch", []float64{1, 2}, []float64{1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, pearsonCorrelation(tt.x, tt.y), 1e-6)
		})
	}
}

func TestPearsonPValue(t *testing.T) {
	// Reference values from the two-tailed t test with n-2 degrees of freedom.
	assert.InDelta(t, 0.104088, pearsonPValue(-0.8, 5), 1e-6)
	assert.InDelta(t, 0.086139, pearsonPValue(0.824163, 5), 1e-5)
	assert.InDelta(t, 0.000033, pearsonPValue(-0.976190, 8), 1e-5)

	// Perfect correlation pins p at zero; n=2 carries no information.
	assert.Equal(t, 0.0, pearsonPValue(1, 3))
	assert.Equal(t, 1.0, pearsonPValue(1, 2))
	assert.Equal(t, 1.0, pearsonPValue(0, 50))
}

func TestPearsonPValueSymmetric(t *testing.T) {
	for _, r := range []float64{0.1, 0.45, 0.8, 0.99} {
		assert.InDelta(t, pearsonPValue(r, 12), pearsonPValue(-r, 12), 1e-12)
	}
}

func TestClassifyStrength(t *testing.T) {
	tests := []struct {
		r    float64
		want string
	}{
		{0.9, "strong"},
		{-0.9, "strong"},
		{0.71, "strong"},
		{0.7, "moderate"},
		{0.5, "moderate"},
		{-0.3, "weak"}, // boundary: 0.3 is not > 0.3
		{0.2, "weak"},
		{0.1, "very weak"},
		{0.05, "very weak"},
		{0, "very weak"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyStrength(tt.r), "r=%v", tt.r)
	}
}

func TestClassifyDirection(t *testing.T) {
	assert.Equal(t, "positive", classifyDirection(0.5))
	assert.Equal(t, "negative", classifyDirection(-0.5))
	// r = 0 classifies as negative; the comparison is >, not a sign check.
	assert.Equal(t, "negative", classifyDirection(0))
}

func TestComputePairwisePerfectCorrelation(t *testing.T) {
	rows := []models.Observation{
		row("2025-01-01", map[string]interface{}{"A": 1.0, "B": 2.0}),
		row("2025-01-02", map[string]interface{}{"A": 2.0, "B": 4.0}),
		row("2025-01-03", map[string]interface{}{"A": 3.0, "B": 6.0}),
	}

	results := ComputePairwise(Tabulate(rows), time.Now())
	require.Len(t, results, 1)

	res := resultFor(t, results, "A", "B")
	assert.Equal(t, 1.0, res.Correlation)
	assert.Equal(t, 0.0, res.PValue)
	assert.Equal(t, "strong", res.Strength)
	assert.Equal(t, "positive", res.Direction)
}

func TestComputePairwiseSkipsConstantColumn(t *testing.T) {
	rows := []models.Observation{
		row("2025-01-01", map[string]interface{}{"A": 1.0, "B": 3.0, "C": 5.0}),
		row("2025-01-02", map[string]interface{}{"A": 2.0, "B": 1.0, "C": 5.0}),
		row("2025-01-03", map[string]interface{}{"A": 3.0, "B": 2.0, "C": 5.0}),
	}

	results := ComputePairwise(Tabulate(rows), time.Now())
	require.Len(t, results, 1, "only (A, B) should survive")
	for _, res := range results {
		assert.NotEqual(t, "C", res.Variable1)
		assert.NotEqual(t, "C", res.Variable2)
	}
}

func TestComputePairwiseSkipsUnderAlignedPair(t *testing.T) {
	// A and B never share a row with a present value.
	rows := []models.Observation{
		row("2025-01-01", map[string]interface{}{"A": 1.0}),
		row("2025-01-02", map[string]interface{}{"B": 2.0}),
		row("2025-01-03", map[string]interface{}{"A": 3.0}),
		row("2025-01-04", map[string]interface{}{"B": 4.0}),
	}

	results := ComputePairwise(Tabulate(rows), time.Now())
	assert.Empty(t, results)
}

func TestComputePairwiseSymmetry(t *testing.T) {
	forward := []models.Observation{
		row("2025-01-01", map[string]interface{}{"A": 1.0, "B": 5.0}),
		row("2025-01-02", map[string]interface{}{"A": 2.0, "B": 3.0}),
		row("2025-01-03", map[string]interface{}{"A": 3.0, "B": 4.0}),
		row("2025-01-04", map[string]interface{}{"A": 4.0, "B": 1.0}),
		row("2025-01-05", map[string]interface{}{"A": 5.0, "B": 2.0}),
	}
	// Same data with the variables' roles swapped.
	swapped := []models.Observation{
		row("2025-01-01", map[string]interface{}{"A": 5.0, "B": 1.0}),
		row("2025-01-02", map[string]interface{}{"A": 3.0, "B": 2.0}),
		row("2025-01-03", map[string]interface{}{"A": 4.0, "B": 3.0}),
		row("2025-01-04", map[string]interface{}{"A": 1.0, "B": 4.0}),
		row("2025-01-05", map[string]interface{}{"A": 2.0, "B": 5.0}),
	}

	f := ComputePairwise(Tabulate(forward), time.Now())
	s := ComputePairwise(Tabulate(swapped), time.Now())
	require.Len(t, f, 1)
	require.Len(t, s, 1)

	assert.Equal(t, f[0].Correlation, s[0].Correlation, "swap of roles keeps the same r here")
	assert.Equal(t, f[0].PValue, s[0].PValue)
	assert.Equal(t, f[0].Strength, s[0].Strength)
}

func TestComputePairwiseNegativePair(t *testing.T) {
	rows := []models.Observation{
		row("2025-01-01", map[string]interface{}{"A": 1.0, "B": 5.0}),
		row("2025-01-02", map[string]interface{}{"A": 2.0, "B": 3.0}),
		row("2025-01-03", map[string]interface{}{"A": 3.0, "B": 4.0}),
		row("2025-01-04", map[string]interface{}{"A": 4.0, "B": 1.0}),
		row("2025-01-05", map[string]interface{}{"A": 5.0, "B": 2.0}),
	}

	results := ComputePairwise(Tabulate(rows), time.Now())
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, -0.8, res.Correlation)
	assert.Equal(t, 0.104, res.PValue)
	assert.Equal(t, "strong", res.Strength)
	assert.Equal(t, "negative", res.Direction)
}

func TestComputePairwiseAlignsAroundMissing(t *testing.T) {
	// The middle row misses B; the aligned sample is rows 1, 2, 4, 5.
	rows := []models.Observation{
		row("2025-01-01", map[string]interface{}{"A": 1.0, "B": 2.0}),
		row("2025-01-02", map[string]interface{}{"A": 2.0, "B": 4.0}),
		row("2025-01-03", map[string]interface{}{"A": 100.0}),
		row("2025-01-04", map[string]interface{}{"A": 3.0, "B": 6.0}),
		row("2025-01-05", map[string]interface{}{"A": 4.0, "B": 8.0}),
	}

	results := ComputePairwise(Tabulate(rows), time.Now())
	require.Len(t, results, 1)
	assert.Equal(t, 1.0, results[0].Correlation, "the unaligned row must not dilute the pair")
}

func TestComputePairwiseDeterministicPairOrder(t *testing.T) {
	rows := []models.Observation{
		row("2025-01-01", map[string]interface{}{"B": 1.0, "A": 2.0}),
		row("2025-01-02", map[string]interface{}{"B": 2.0, "A": 5.0, "C": 1.0}),
		row("2025-01-03", map[string]interface{}{"B": 3.0, "A": 9.0, "C": 4.0}),
	}

	first := ComputePairwise(Tabulate(rows), time.Now())
	for i := 0; i < 10; i++ {
		again := ComputePairwise(Tabulate(rows), time.Now())
		require.Len(t, again, len(first))
		for j := range first {
			assert.Equal(t, first[j].Variable1, again[j].Variable1)
			assert.Equal(t, first[j].Variable2, again[j].Variable2)
		}
	}

	// A and B both appear in row one: ties break alphabetically, and C can
	// never precede them.
	res := resultFor(t, first, "A", "B")
	assert.Equal(t, "A", res.Variable1)
	assert.Equal(t, "B", res.Variable2)
}

func TestRound3(t *testing.T) {
	assert.Equal(t, 0.824, round3(0.8241634))
	assert.Equal(t, -0.976, round3(-0.97619))
	assert.Equal(t, 1.0, round3(0.99951))
}
