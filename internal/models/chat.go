package models

import "time"

// ChatSession ties a user to their assistant conversation. The OpenAI key is
// never persisted, only its hash.
type ChatSession struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	APIKeyHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatMessage is one turn of the assistant conversation.
type ChatMessage struct {
	ID        string    `json:"-"`
	SessionID string    `json:"-"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// User mirrors the users table. The ID is the subject claim of the verified
// Google identity token.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
