package store

import (
	"fmt"

	"github.com/google/uuid"

	"epsilon-backend/internal/models"
)

// ReplaceCorrelations swaps the user's full correlation set in one
// transaction, so readers never observe a half-written set.
func (s *Store) ReplaceCorrelations(userID string, results []models.CorrelationResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace correlations: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(s.rebind("DELETE FROM correlations WHERE user_id = ?"), userID); err != nil {
		return fmt.Errorf("delete correlations: %w", err)
	}

	for _, res := range results {
		_, err := tx.Exec(s.rebind(`
			INSERT INTO correlations
				(id, user_id, variable_1, variable_2, correlation, p_value, strength, direction, calculated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			uuid.New().String(), userID,
			res.Variable1, res.Variable2,
			res.Correlation, res.PValue,
			res.Strength, res.Direction, res.CalculatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert correlation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace correlations: %w", err)
	}
	return nil
}

// AllCorrelations returns the user's correlation set ordered by signed
// correlation value, strongest positive first.
func (s *Store) AllCorrelations(userID string) ([]models.CorrelationResult, error) {
	rows, err := s.db.Query(s.rebind(`
		SELECT variable_1, variable_2, correlation, p_value, strength, direction, calculated_at
		FROM correlations WHERE user_id = ?
		ORDER BY correlation DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("load correlations: %w", err)
	}
	defer rows.Close()

	var out []models.CorrelationResult
	for rows.Next() {
		var res models.CorrelationResult
		err := rows.Scan(&res.Variable1, &res.Variable2, &res.Correlation,
			&res.PValue, &res.Strength, &res.Direction, &res.CalculatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan correlation: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
