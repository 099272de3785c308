package config

import (
	"os"
	"strings"
)

// Config is the process-wide configuration, read from the environment once
// at startup and threaded explicitly through the components that need it.
type Config struct {
	Port           string
	DatabaseURL    string // postgres DSN; empty means local sqlite
	SQLitePath     string
	GoogleClientID string
	OpenAIBaseURL  string
	OpenAIModel    string
	AllowedOrigins []string
}

// Load reads the environment with development defaults.
func Load() Config {
	cfg := Config{
		Port:           getenv("PORT", "8001"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     getenv("SQLITE_PATH", "./instance/user_data.db"),
		GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),
	}

	origins := getenv("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	for _, origin := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
