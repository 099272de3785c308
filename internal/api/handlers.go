package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"epsilon-backend/internal/analysis"
	"epsilon-backend/internal/auth"
	"epsilon-backend/internal/models"
	"epsilon-backend/internal/service"
	"epsilon-backend/internal/store"
)

const (
	MaxImportSize = 10 * 1024 * 1024 // 10MB
	SessionCookie = "session_token"
)

type contextKey string

const sessionKey contextKey = "session"

type Handler struct {
	Store        *store.Store
	Correlations *service.CorrelationService
	Chat         *service.ChatService
	CSVService   *analysis.CSVService
	Verifier     *auth.Verifier
	Sessions     *auth.SessionManager
	Logger       *log.Logger
}

func NewHandler(st *store.Store, corr *service.CorrelationService, chat *service.ChatService,
	csv *analysis.CSVService, verifier *auth.Verifier, sessions *auth.SessionManager,
	logger *log.Logger) *Handler {
	return &Handler{
		Store:        st,
		Correlations: corr,
		Chat:         chat,
		CSVService:   csv,
		Verifier:     verifier,
		Sessions:     sessions,
		Logger:       logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)

	// Auth
	r.Post("/verify-google-token", h.VerifyGoogleToken)
	r.Post("/logout", h.Logout)
	r.Get("/auth-status", h.AuthStatus)

	// Ad-hoc correlation works without stored data or a login.
	r.Post("/calculate_correlation", h.CalculateCorrelation)

	// Everything below needs an authenticated session.
	r.Group(func(pr chi.Router) {
		pr.Use(h.RequireAuth)

		// Data
		pr.Post("/add_row", h.AddRow)
		pr.Get("/get_data", h.GetData)
		pr.Post("/replace_data", h.ReplaceData)
		pr.Post("/clear_data", h.ClearData)
		pr.Post("/reset_table", h.ResetTable)
		pr.Post("/import_datafile", h.ImportDatafile)

		// Correlations
		pr.Post("/api/correlations/calculate", h.CalculateUserCorrelations)
		pr.Get("/api/correlations/all", h.GetAllCorrelations)
		pr.Get("/api/correlations/top", h.GetTopCorrelations)

		// Chat
		pr.Post("/api/chat/initialize", h.InitializeChat)
		pr.Post("/api/chat/send", h.SendChatMessage)
		pr.Get("/api/chat/history", h.GetChatHistory)
		pr.Post("/api/chat/clear", h.ClearChatHistory)
	})
}

// ============================================================================
// Helpers
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sessionFromRequest resolves the session from the Authorization header or
// the session cookie.
func (h *Handler) sessionFromRequest(r *http.Request) *auth.Session {
	token := ""
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	} else if cookie, err := r.Cookie(SessionCookie); err == nil {
		token = cookie.Value
	}
	if token == "" {
		return nil
	}
	return h.Sessions.Get(token)
}

// RequireAuth rejects requests without a valid session and stashes the
// session in the request context for handlers.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := h.sessionFromRequest(r)
		if session == nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentSession(r *http.Request) *auth.Session {
	session, _ := r.Context().Value(sessionKey).(*auth.Session)
	return session
}

// recalculate triggers a correlation rebuild after a data mutation. Failures
// are logged and swallowed: mutation success and analysis success are
// decoupled on purpose.
func (h *Handler) recalculate(userID string) {
	if err := h.Correlations.Recalculate(userID); err != nil {
		h.Logger.Printf("failed to recalculate correlations for user %s: %v", userID, err)
	}
}

// ============================================================================
// Health & Auth
// ============================================================================

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (h *Handler) VerifyGoogleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false, "error": "No token provided",
		})
		return
	}

	userID, email, err := h.Verifier.Verify(r.Context(), req.Token)
	if err != nil {
		h.Logger.Printf("token verification failed: %v", err)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false, "error": "Invalid token",
		})
		return
	}

	user, err := h.Store.EnsureUser(userID, email)
	if err != nil {
		h.Logger.Printf("authentication error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false, "error": "Authentication failed",
		})
		return
	}

	session := h.Sessions.Create(user.ID, user.Email)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   session.Token,
		"user":    map[string]string{"id": user.ID, "email": user.Email},
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.sessionFromRequest(r); session != nil {
		h.Sessions.Delete(session.Token)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	session := h.sessionFromRequest(r)
	if session == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"email":         session.Email,
	})
}

// ============================================================================
// Data
// ============================================================================

func (h *Handler) AddRow(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)

	var row models.Observation
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error", "message": "Invalid row payload",
		})
		return
	}

	h.Logger.Printf("adding new row for user %s: date=%s vars=%d", session.UserID, row.Date, len(row.Values))

	if err := h.Store.AddObservation(session.UserID, row); err != nil {
		status := http.StatusInternalServerError
		if models.IsValidation(err) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"status": "error", "message": err.Error()})
		return
	}

	h.recalculate(session.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)

	rows, err := h.Store.LoadObservations(session.UserID)
	if err != nil {
		// Matches the lenient read path: log and hand back an empty table.
		h.Logger.Printf("error loading data for user %s: %v", session.UserID, err)
		writeJSON(w, http.StatusOK, []models.Observation{})
		return
	}
	if rows == nil {
		rows = []models.Observation{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) ReplaceData(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)

	var rows []models.Observation
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error", "message": "Data must be a list",
		})
		return
	}

	if err := h.Store.ReplaceObservations(session.UserID, rows, false); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error", "message": err.Error(),
		})
		return
	}
	h.Logger.Printf("replaced data for user %s with %d rows", session.UserID, len(rows))

	h.recalculate(session.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) ClearData(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)

	if err := h.Store.ClearObservations(session.UserID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error", "message": err.Error(),
		})
		return
	}

	h.recalculate(session.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) ResetTable(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)

	if err := h.Store.ReplaceObservations(session.UserID, nil, true); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error", "message": err.Error(),
		})
		return
	}

	h.recalculate(session.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) ImportDatafile(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)

	if err := r.ParseMultipartForm(MaxImportSize); err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, "File must be CSV (.csv)")
		return
	}

	rows, err := h.CSVService.ImportObservations(file)
	if err != nil {
		status := http.StatusBadRequest
		if !models.IsValidation(err) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, err.Error())
		return
	}

	if err := h.Store.ReplaceObservations(session.UserID, rows, false); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.recalculate(session.UserID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Successfully imported %d rows", len(rows)),
		"data":    rows,
	})
}

// ============================================================================
// Correlations
// ============================================================================

func (h *Handler) CalculateCorrelation(w http.ResponseWriter, r *http.Request) {
	var req models.AdHocCorrelationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid request body", "debug_info": []string{},
		})
		return
	}

	resp, debug, err := service.AdHocCorrelation(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(), "debug_info": debug,
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CalculateUserCorrelations(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)

	if err := h.Correlations.Recalculate(session.UserID); err != nil {
		h.Logger.Printf("error calculating correlations for user %s: %v", session.UserID, err)
		writeError(w, http.StatusInternalServerError, "Failed to calculate correlations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Correlations calculated successfully",
	})
}

func (h *Handler) GetAllCorrelations(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)

	results, err := h.Correlations.All(session.UserID)
	if err != nil {
		h.Logger.Printf("error getting correlations for user %s: %v", session.UserID, err)
		writeError(w, http.StatusInternalServerError, "Failed to get correlations")
		return
	}
	if results == nil {
		results = []models.CorrelationResult{}
	}
	writeJSON(w, http.StatusOK, models.CorrelationListResponse{
		Correlations: results,
		Count:        len(results),
	})
}

func (h *Handler) GetTopCorrelations(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)

	count := service.DefaultTopCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			count = n
		}
	}

	results, err := h.Correlations.TopN(session.UserID, count)
	if err != nil {
		h.Logger.Printf("error getting top correlations for user %s: %v", session.UserID, err)
		writeError(w, http.StatusInternalServerError, "Failed to get top correlations")
		return
	}
	if results == nil {
		results = []models.CorrelationResult{}
	}
	writeJSON(w, http.StatusOK, models.CorrelationListResponse{
		Correlations: results,
		Count:        len(results),
	})
}

// ============================================================================
// Chat
// ============================================================================

func (h *Handler) InitializeChat(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)

	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "API key required")
		return
	}

	// The raw key stays in the in-memory session only.
	h.Sessions.SetOpenAIKey(session.Token, req.APIKey)

	chatSession, err := h.Chat.Initialize(session.UserID, req.APIKey)
	if err != nil {
		h.Logger.Printf("error initializing chat for user %s: %v", session.UserID, err)
		writeError(w, http.StatusInternalServerError, "Failed to initialize chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"session_id": chatSession.ID,
	})
}

func (h *Handler) SendChatMessage(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)

	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "Message and session_id required")
		return
	}

	if session.OpenAIKey == "" {
		writeError(w, http.StatusBadRequest, "API key not found in session")
		return
	}

	reply, included, err := h.Chat.Send(r.Context(), session.UserID, req.SessionID, req.Message, session.OpenAIKey)
	if err != nil {
		if models.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.Logger.Printf("error sending chat message for user %s: %v", session.UserID, err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to send message: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":               true,
		"response":              reply,
		"correlations_included": included,
	})
}

func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)

	messages, sessionID, err := h.Chat.History(session.UserID)
	if err != nil {
		h.Logger.Printf("error getting chat history for user %s: %v", session.UserID, err)
		writeError(w, http.StatusInternalServerError, "Failed to get chat history")
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}

	resp := map[string]interface{}{"messages": messages}
	if sessionID != "" {
		resp["session_id"] = sessionID
	} else {
		resp["session_id"] = nil
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ClearChatHistory(w http.ResponseWriter, r *http.Request) {
	session := currentSession(r)

	var req struct {
		SessionID string `json:"session_id"`
	}
	// Body is optional; without one the current session is cleared.
	json.NewDecoder(r.Body).Decode(&req)

	cleared, err := h.Chat.Clear(session.UserID, req.SessionID)
	if err != nil {
		h.Logger.Printf("error clearing chat history for user %s: %v", session.UserID, err)
		writeError(w, http.StatusInternalServerError, "Failed to clear chat history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"cleared": cleared,
	})
}
