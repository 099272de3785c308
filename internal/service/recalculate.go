package service

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"epsilon-backend/internal/models"
	"epsilon-backend/internal/store"
)

// DefaultTopCount is how many correlations feed the chat context.
const DefaultTopCount = 3

// CorrelationService runs the full recomputation pipeline and serves ranked
// retrieval. Every recalculation is a complete rebuild over all of the
// user's rows; there is no incremental path.
type CorrelationService struct {
	store  *store.Store
	logger *log.Logger
}

// NewCorrelationService creates the service around the given store.
func NewCorrelationService(st *store.Store, logger *log.Logger) *CorrelationService {
	return &CorrelationService{store: st, logger: logger}
}

// Recalculate loads the user's observations, tabulates them, computes every
// pairwise correlation and replaces the stored result set wholesale.
func (s *CorrelationService) Recalculate(userID string) error {
	rows, err := s.store.LoadObservations(userID)
	if err != nil {
		return fmt.Errorf("load observations: %w", err)
	}

	table := Tabulate(rows)
	results := ComputePairwise(table, time.Now().UTC())

	if err := s.store.ReplaceCorrelations(userID, results); err != nil {
		return fmt.Errorf("store correlations: %w", err)
	}

	s.logger.Printf("recalculated %d correlations from %d rows for user %s",
		len(results), len(rows), userID)
	return nil
}

// All returns every stored result, ordered by signed correlation descending.
func (s *CorrelationService) All(userID string) ([]models.CorrelationResult, error) {
	return s.store.AllCorrelations(userID)
}

// TopN returns the n strongest results by absolute correlation value.
// n <= 0 falls back to the default of 3.
func (s *CorrelationService) TopN(userID string, n int) ([]models.CorrelationResult, error) {
	if n <= 0 {
		n = DefaultTopCount
	}

	results, err := s.store.AllCorrelations(userID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return math.Abs(results[i].Correlation) > math.Abs(results[j].Correlation)
	})
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// ContextBlock formats the top correlations as numbered lines for chat
// context injection. It always returns a usable string; on any failure or
// with no stored results it is simply empty.
func (s *CorrelationService) ContextBlock(userID string) string {
	top, err := s.TopN(userID, DefaultTopCount)
	if err != nil {
		s.logger.Printf("failed to load correlation context for user %s: %v", userID, err)
		return ""
	}
	if len(top) == 0 {
		return ""
	}

	var b strings.Builder
	for i, corr := range top {
		fmt.Fprintf(&b, "%d. %s and %s: r = %.3f (p = %.3f)\n",
			i+1, corr.Variable1, corr.Variable2, corr.Correlation, corr.PValue)
	}
	return b.String()
}
