package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"epsilon-backend/internal/analysis"
	"epsilon-backend/internal/api"
	"epsilon-backend/internal/auth"
	"epsilon-backend/internal/config"
	"epsilon-backend/internal/llm"
	"epsilon-backend/internal/service"
	"epsilon-backend/internal/store"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if cfg.DatabaseURL == "" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			logger.Fatalf("Failed to create data directory: %v", err)
		}
	}

	st, err := store.Open(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	// Initialize Services
	llmClient := llm.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIModel)
	corrService := service.NewCorrelationService(st, logger)
	chatService := service.NewChatService(st, llmClient, corrService, logger)
	csvService := analysis.NewCSVService()
	verifier := auth.NewVerifier(cfg.GoogleClientID)
	sessions := auth.NewSessionManager()

	// Initialize Handler
	handler := api.NewHandler(st, corrService, chatService, csvService, verifier, sessions, logger)

	// Router Setup
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// CORS - Allow frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Root endpoint
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Epsilon Backend is Running"))
	})

	// Register all API Routes
	handler.RegisterRoutes(r)

	logger.Printf("Starting backend on http://localhost:%s", cfg.Port)
	if cfg.DatabaseURL != "" {
		logger.Printf("Storage: postgres")
	} else {
		logger.Printf("Storage: sqlite at %s", cfg.SQLitePath)
	}

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatalf("Server failed to start: %v", err)
	}
}
