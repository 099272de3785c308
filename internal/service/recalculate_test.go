package service

import (
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epsilon-backend/internal/models"
	"epsilon-backend/internal/store"
)

func newTestService(t *testing.T) (*CorrelationService, *store.Store) {
	t.Helper()
	st, err := store.Open("", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewCorrelationService(st, log.New(io.Discard, "", 0)), st
}

func TestRecalculateStoresPairs(t *testing.T) {
	svc, st := newTestService(t)

	rows := []models.Observation{
		row("2025-01-01", map[string]interface{}{"A": 1.0, "B": 2.0}),
		row("2025-01-02", map[string]interface{}{"A": 2.0, "B": 4.0}),
		row("2025-01-03", map[string]interface{}{"A": 3.0, "B": 6.0}),
	}
	require.NoError(t, st.ReplaceObservations("u1", rows, false))
	require.NoError(t, svc.Recalculate("u1"))

	results, err := svc.All("u1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1.0, results[0].Correlation)
	assert.Equal(t, "strong", results[0].Strength)
	assert.False(t, results[0].CalculatedAt.IsZero())
}

func TestRecalculateIdempotent(t *testing.T) {
	svc, st := newTestService(t)

	rows := []models.Observation{
		row("2025-01-01", map[string]interface{}{"A": 1.0, "B": 5.0, "C": 2.0}),
		row("2025-01-02", map[string]interface{}{"A": 2.0, "B": 3.0, "C": 9.0}),
		row("2025-01-03", map[string]interface{}{"A": 3.0, "B": 4.0, "C": 4.0}),
		row("2025-01-04", map[string]interface{}{"A": 4.0, "B": 1.0, "C": 7.0}),
	}
	require.NoError(t, st.ReplaceObservations("u1", rows, false))

	require.NoError(t, svc.Recalculate("u1"))
	first, err := svc.All("u1")
	require.NoError(t, err)

	require.NoError(t, svc.Recalculate("u1"))
	second, err := svc.All("u1")
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Variable1, second[i].Variable1)
		assert.Equal(t, first[i].Variable2, second[i].Variable2)
		assert.Equal(t, first[i].Correlation, second[i].Correlation)
		assert.Equal(t, first[i].PValue, second[i].PValue)
		assert.Equal(t, first[i].Strength, second[i].Strength)
		assert.Equal(t, first[i].Direction, second[i].Direction)
	}
}

func TestRecalculateOnEmptyData(t *testing.T) {
	svc, st := newTestService(t)

	// Seed results, then wipe the data and recalculate: the result set for
	// the user must end up empty as well.
	rows := []models.Observation{
		row("2025-01-01", map[string]interface{}{"A": 1.0, "B": 2.0}),
		row("2025-01-02", map[string]interface{}{"A": 2.0, "B": 1.0}),
	}
	require.NoError(t, st.ReplaceObservations("u1", rows, false))
	require.NoError(t, svc.Recalculate("u1"))

	require.NoError(t, st.ReplaceObservations("u1", nil, true))
	loaded, err := st.LoadObservations("u1")
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, svc.Recalculate("u1"))
	results, err := svc.All("u1")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTopNMagnitudeOrder(t *testing.T) {
	svc, st := newTestService(t)

	seed := []models.CorrelationResult{
		{Variable1: "A", Variable2: "B", Correlation: 0.9, PValue: 0.01, Strength: "strong", Direction: "positive"},
		{Variable1: "A", Variable2: "C", Correlation: -0.95, PValue: 0.001, Strength: "strong", Direction: "negative"},
		{Variable1: "B", Variable2: "C", Correlation: 0.2, PValue: 0.6, Strength: "weak", Direction: "positive"},
	}
	require.NoError(t, st.ReplaceCorrelations("u1", seed))

	top, err := svc.TopN("u1", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, -0.95, top[0].Correlation, "magnitude ranking, not signed")
	assert.Equal(t, 0.9, top[1].Correlation)
}

func TestTopNDefaultCount(t *testing.T) {
	svc, st := newTestService(t)

	seed := []models.CorrelationResult{
		{Variable1: "A", Variable2: "B", Correlation: 0.4},
		{Variable1: "A", Variable2: "C", Correlation: 0.3},
		{Variable1: "A", Variable2: "D", Correlation: 0.2},
		{Variable1: "A", Variable2: "E", Correlation: 0.1},
	}
	require.NoError(t, st.ReplaceCorrelations("u1", seed))

	top, err := svc.TopN("u1", 0)
	require.NoError(t, err)
	assert.Len(t, top, DefaultTopCount)
}

func TestContextBlock(t *testing.T) {
	svc, st := newTestService(t)

	assert.Empty(t, svc.ContextBlock("u1"), "no data means an empty context")

	seed := []models.CorrelationResult{
		{Variable1: "Sleep", Variable2: "Mood", Correlation: 0.9, PValue: 0.01},
		{Variable1: "Sleep", Variable2: "Stress", Correlation: -0.95, PValue: 0.001},
	}
	require.NoError(t, st.ReplaceCorrelations("u1", seed))

	block := svc.ContextBlock("u1")
	assert.Contains(t, block, "1. Sleep and Stress: r = -0.950 (p = 0.001)")
	assert.Contains(t, block, "2. Sleep and Mood: r = 0.900 (p = 0.010)")
}
