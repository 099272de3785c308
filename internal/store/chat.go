package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"epsilon-backend/internal/models"
)

// UpsertChatSession returns the user's chat session, creating it on first
// use and refreshing the stored API key hash otherwise.
func (s *Store) UpsertChatSession(userID, apiKeyHash string) (*models.ChatSession, error) {
	existing, err := s.ChatSessionByUser(userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		_, err := s.db.Exec(s.rebind(
			"UPDATE chat_sessions SET api_key_hash = ? WHERE id = ?"), apiKeyHash, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("update chat session: %w", err)
		}
		existing.APIKeyHash = apiKeyHash
		return existing, nil
	}

	session := &models.ChatSession{
		ID:         uuid.New().String(),
		UserID:     userID,
		APIKeyHash: apiKeyHash,
		CreatedAt:  time.Now().UTC(),
	}
	_, err = s.db.Exec(s.rebind(
		"INSERT INTO chat_sessions (id, user_id, api_key_hash, created_at) VALUES (?, ?, ?, ?)"),
		session.ID, session.UserID, session.APIKeyHash, session.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chat session: %w", err)
	}
	return session, nil
}

// ChatSessionByUser returns the user's chat session, or nil when none exists.
func (s *Store) ChatSessionByUser(userID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.db.QueryRow(s.rebind(
		"SELECT id, user_id, api_key_hash, created_at FROM chat_sessions WHERE user_id = ? ORDER BY created_at LIMIT 1"),
		userID,
	).Scan(&session.ID, &session.UserID, &session.APIKeyHash, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat session: %w", err)
	}
	return &session, nil
}

// ChatSession returns the session only if it belongs to the user.
func (s *Store) ChatSession(id, userID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.db.QueryRow(s.rebind(
		"SELECT id, user_id, api_key_hash, created_at FROM chat_sessions WHERE id = ? AND user_id = ?"),
		id, userID,
	).Scan(&session.ID, &session.UserID, &session.APIKeyHash, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat session: %w", err)
	}
	return &session, nil
}

// AddChatMessage appends one conversation turn.
func (s *Store) AddChatMessage(sessionID, role, content string, at time.Time) error {
	_, err := s.db.Exec(s.rebind(
		"INSERT INTO chat_messages (id, session_id, role, content, timestamp) VALUES (?, ?, ?, ?, ?)"),
		uuid.New().String(), sessionID, role, content, at,
	)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// RecentChatMessages returns up to limit messages, newest first.
func (s *Store) RecentChatMessages(sessionID string, limit int) ([]models.ChatMessage, error) {
	return s.queryMessages(s.rebind(
		"SELECT id, session_id, role, content, timestamp FROM chat_messages WHERE session_id = ? ORDER BY timestamp DESC LIMIT ?"),
		sessionID, limit)
}

// ChatMessages returns the full conversation in chronological order.
func (s *Store) ChatMessages(sessionID string) ([]models.ChatMessage, error) {
	return s.queryMessages(s.rebind(
		"SELECT id, session_id, role, content, timestamp FROM chat_messages WHERE session_id = ? ORDER BY timestamp ASC"),
		sessionID)
}

func (s *Store) queryMessages(query string, args ...interface{}) ([]models.ChatMessage, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("load chat messages: %w", err)
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ClearChatMessages deletes the session's messages and reports how many.
func (s *Store) ClearChatMessages(sessionID string) (int64, error) {
	res, err := s.db.Exec(s.rebind("DELETE FROM chat_messages WHERE session_id = ?"), sessionID)
	if err != nil {
		return 0, fmt.Errorf("clear chat messages: %w", err)
	}
	return res.RowsAffected()
}
