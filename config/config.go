package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradejournal/internal/adapters/logger" // for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// HTTP server
	HTTPAddr string

	// Auth
	AuthPassword string
	AuthSecret   string
	TokenTTL     time.Duration

	// Kite Connect (live quotes); optional, quotes degrade gracefully
	KiteAPIKey      string
	KiteAccessToken string

	// Database
	DBPath string

	// Query cache
	CacheTTL time.Duration

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Auth
	cfg.AuthPassword = getEnv("AUTH_PASSWORD", "")
	if cfg.AuthPassword == "" {
		errs = append(errs, "AUTH_PASSWORD must be set")
	}
	cfg.AuthSecret = getEnv("AUTH_SECRET", "")
	if cfg.AuthSecret == "" {
		errs = append(errs, "AUTH_SECRET must be set")
	}

	tokenTTLHours := getEnvAsInt("TOKEN_TTL_HOURS", 24*7)
	if tokenTTLHours <= 0 {
		errs = append(errs, "TOKEN_TTL_HOURS must be positive")
	}
	cfg.TokenTTL = time.Duration(tokenTTLHours) * time.Hour

	// Kite Connect. Both empty is fine: dashboard falls back to stored
	// last prices.
	cfg.KiteAPIKey = getEnv("KITE_API_KEY", "")
	cfg.KiteAccessToken = getEnv("KITE_ACCESS_TOKEN", "")
	if (cfg.KiteAPIKey == "") != (cfg.KiteAccessToken == "") {
		errs = append(errs, "KITE_API_KEY and KITE_ACCESS_TOKEN must be set together")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/tradejournal.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Query cache
	cacheTTLSeconds := getEnvAsInt("CACHE_TTL_SECONDS", 15)
	if cacheTTLSeconds < 0 {
		errs = append(errs, "CACHE_TTL_SECONDS cannot be negative")
	}
	cfg.CacheTTL = time.Duration(cacheTTLSeconds) * time.Second

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
