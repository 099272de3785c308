package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"epsilon-backend/internal/models"
)

// AddObservation persists a single dated row. The date must be a parseable
// calendar day; anything else is a ValidationError.
func (s *Store) AddObservation(userID string, obs models.Observation) error {
	if obs.Date == "" {
		return models.Validationf("Date is required")
	}
	if _, err := obs.ParseDate(); err != nil {
		return models.Validationf("invalid date format: %s", obs.Date)
	}

	payload, err := json.Marshal(obs.Values)
	if err != nil {
		return fmt.Errorf("encode observation: %w", err)
	}

	_, err = s.db.Exec(s.rebind(
		"INSERT INTO observations (id, user_id, date, data, created_at) VALUES (?, ?, ?, ?, ?)"),
		uuid.New().String(), userID, obs.Date, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// ReplaceObservations deletes all of the user's rows and inserts the given
// ones in a single transaction. Rows with missing or unparseable dates are
// skipped, not inserted: imports stay lenient. With reset and no rows this
// degenerates to a plain delete.
func (s *Store) ReplaceObservations(userID string, rows []models.Observation, reset bool) error {
	_ = reset // replace and reset both clear first; kept for the caller's intent

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(s.rebind("DELETE FROM observations WHERE user_id = ?"), userID); err != nil {
		return fmt.Errorf("delete observations: %w", err)
	}

	now := time.Now().UTC()
	for _, obs := range rows {
		if obs.Date == "" {
			continue
		}
		if _, err := obs.ParseDate(); err != nil {
			continue
		}
		payload, err := json.Marshal(obs.Values)
		if err != nil {
			return fmt.Errorf("encode observation: %w", err)
		}
		_, err = tx.Exec(s.rebind(
			"INSERT INTO observations (id, user_id, date, data, created_at) VALUES (?, ?, ?, ?, ?)"),
			uuid.New().String(), userID, obs.Date, string(payload), now,
		)
		if err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// ClearObservations deletes all rows for the user. Clearing an already empty
// table is a no-op.
func (s *Store) ClearObservations(userID string) error {
	if _, err := s.db.Exec(s.rebind("DELETE FROM observations WHERE user_id = ?"), userID); err != nil {
		return fmt.Errorf("clear observations: %w", err)
	}
	return nil
}

// LoadObservations returns all of the user's rows ordered by ascending date.
func (s *Store) LoadObservations(userID string) ([]models.Observation, error) {
	rows, err := s.db.Query(s.rebind(
		"SELECT date, data FROM observations WHERE user_id = ? ORDER BY date, created_at"), userID)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		var date, payload string
		if err := rows.Scan(&date, &payload); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		values := map[string]interface{}{}
		if err := json.Unmarshal([]byte(payload), &values); err != nil {
			return nil, fmt.Errorf("decode observation: %w", err)
		}
		out = append(out, models.Observation{Date: date, Values: values})
	}
	return out, rows.Err()
}
