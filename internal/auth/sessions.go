package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one authenticated browser session. The OpenAI key lives only
// here, in memory, never in the database.
type Session struct {
	Token     string
	UserID    string
	Email     string
	OpenAIKey string
	CreatedAt time.Time
}

// SessionManager holds active sessions behind an RWMutex.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Create issues a fresh session token for the user.
func (m *SessionManager) Create(userID, email string) *Session {
	session := &Session{
		Token:     uuid.New().String(),
		UserID:    userID,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.Token] = session
	return session
}

// Get returns the session for a token, or nil.
func (m *SessionManager) Get(token string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[token]
}

// SetOpenAIKey attaches the user's API key to an existing session.
func (m *SessionManager) SetOpenAIKey(token, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[token]
	if !ok {
		return false
	}
	session.OpenAIKey = key
	return true
}

// Delete removes the session; deleting an unknown token is a no-op.
func (m *SessionManager) Delete(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}
