package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"epsilon-backend/internal/llm"
	"epsilon-backend/internal/models"
	"epsilon-backend/internal/store"
)

// historyWindow is how many recent turns are replayed to the model.
const historyWindow = 10

const systemPromptTemplate = "You are a helpful nurse assistant. The user is tracking various personal metrics over time. The main three correlations we have found are: %s. Please provide insights based on these correlations and answer the user's questions about their data patterns. Discuss like you're their supportive doctor or nurse. Each response should only be a few sentences long, and include follow-up questions to help the user understand their data better."

// ChatService runs the correlation-aware assistant conversation.
type ChatService struct {
	store        *store.Store
	llm          *llm.Client
	correlations *CorrelationService
	logger       *log.Logger
}

func NewChatService(st *store.Store, client *llm.Client, corr *CorrelationService, logger *log.Logger) *ChatService {
	return &ChatService{store: st, llm: client, correlations: corr, logger: logger}
}

// Initialize creates or refreshes the user's chat session. Only a SHA-256
// hash of the API key is persisted.
func (s *ChatService) Initialize(userID, apiKey string) (*models.ChatSession, error) {
	sum := sha256.Sum256([]byte(apiKey))
	return s.store.UpsertChatSession(userID, hex.EncodeToString(sum[:]))
}

// Send forwards the user's message to the chat API with the correlation
// context block and recent history, persisting both sides of the exchange.
// The second return reports whether any correlation context was included.
func (s *ChatService) Send(ctx context.Context, userID, sessionID, message, apiKey string) (string, bool, error) {
	session, err := s.store.ChatSession(sessionID, userID)
	if err != nil {
		return "", false, err
	}
	if session == nil {
		return "", false, models.Validationf("Invalid session")
	}

	contextBlock := s.correlations.ContextBlock(userID)
	included := contextBlock != ""
	if included {
		contextBlock = "\n\nCurrent data correlations context:\n" + contextBlock
	}

	messages := []llm.Message{{
		Role:    "system",
		Content: llm.CleanText(fmt.Sprintf(systemPromptTemplate, contextBlock)),
	}}

	recent, err := s.store.RecentChatMessages(session.ID, historyWindow)
	if err != nil {
		return "", false, err
	}
	// Newest-first from the store; replay chronologically.
	for i := len(recent) - 1; i >= 0; i-- {
		messages = append(messages, llm.Message{
			Role:    recent[i].Role,
			Content: llm.CleanText(recent[i].Content),
		})
	}

	userContent := llm.CleanText(message)
	messages = append(messages, llm.Message{Role: "user", Content: userContent})

	reply, err := s.llm.ChatCompletion(ctx, apiKey, messages)
	if err != nil {
		return "", included, fmt.Errorf("chat completion: %w", err)
	}

	now := time.Now().UTC()
	if err := s.store.AddChatMessage(session.ID, "user", userContent, now); err != nil {
		return "", included, err
	}
	if err := s.store.AddChatMessage(session.ID, "assistant", llm.CleanText(reply), now.Add(time.Millisecond)); err != nil {
		return "", included, err
	}

	return reply, included, nil
}

// History returns the full conversation and its session ID, or an empty
// list when the user has no session yet.
func (s *ChatService) History(userID string) ([]models.ChatMessage, string, error) {
	session, err := s.store.ChatSessionByUser(userID)
	if err != nil {
		return nil, "", err
	}
	if session == nil {
		return nil, "", nil
	}
	messages, err := s.store.ChatMessages(session.ID)
	if err != nil {
		return nil, "", err
	}
	return messages, session.ID, nil
}

// Clear deletes the session's messages and reports how many were removed.
// With no session ID the user's current session is cleared; with no session
// at all it is a no-op.
func (s *ChatService) Clear(userID, sessionID string) (int64, error) {
	var session *models.ChatSession
	var err error
	if sessionID != "" {
		session, err = s.store.ChatSession(sessionID, userID)
	} else {
		session, err = s.store.ChatSessionByUser(userID)
	}
	if err != nil {
		return 0, err
	}
	if session == nil {
		return 0, nil
	}

	cleared, err := s.store.ClearChatMessages(session.ID)
	if err != nil {
		return 0, err
	}
	s.logger.Printf("cleared %d chat messages for user %s session %s", cleared, userID, session.ID)
	return cleared, nil
}
