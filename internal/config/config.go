// File: internal/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Backend endpoints.
	APIBaseURL string // REST API, e.g. http://localhost:8090
	SocketURL  string // real-time endpoint, e.g. ws://localhost:8090/ws

	// Credentials. AuthToken takes precedence; Username/Password are used to
	// obtain a token on startup when no token is configured.
	AuthToken string
	Username  string
	Password  string

	// Local message archive (sqlite). Empty disables persistence.
	ArchivePath string

	// Sync tuning.
	RetentionLimit  int // most-recent messages kept per channel
	TypingExpirySec int // seconds before a silent typist is expired
	HistoryPageSize int

	Environment string
}

// Load reads configuration from environment variables or .env file.
func Load() *Config {
	env := os.Getenv("ENV")
	if strings.ToLower(env) != "production" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found; continuing with environment variables")
		}
	}

	cfg := &Config{
		APIBaseURL:      getEnv("API_BASE_URL", "http://localhost:8090"),
		SocketURL:       getEnv("SOCKET_URL", "ws://localhost:8090/ws"),
		AuthToken:       getEnv("AUTH_TOKEN", ""),
		Username:        getEnv("CHAT_USERNAME", ""),
		Password:        getEnv("CHAT_PASSWORD", ""),
		ArchivePath:     getEnv("ARCHIVE_PATH", "messages.db"),
		RetentionLimit:  getEnvAsInt("RETENTION_LIMIT", 500),
		TypingExpirySec: getEnvAsInt("TYPING_EXPIRY_SECONDS", 8),
		HistoryPageSize: getEnvAsInt("HISTORY_PAGE_SIZE", 50),
		Environment:     env,
	}

	// Validation for production environments
	if strings.ToLower(env) == "production" {
		missing := []string{}
		if cfg.APIBaseURL == "" {
			missing = append(missing, "API_BASE_URL")
		}
		if cfg.SocketURL == "" {
			missing = append(missing, "SOCKET_URL")
		}
		if cfg.AuthToken == "" && (cfg.Username == "" || cfg.Password == "") {
			missing = append(missing, "AUTH_TOKEN or CHAT_USERNAME/CHAT_PASSWORD")
		}
		if len(missing) > 0 {
			log.Fatalf("Missing required production environment variables: %v", missing)
		}
	}

	return cfg
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an env var as an integer, with a fallback.
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as integer. Using default value.", key)
		return defaultValue
	}
	return intValue
}
