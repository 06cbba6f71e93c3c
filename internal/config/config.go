package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultGeminiModel          = "gemini-2.5-flash"
	defaultDatabasePath         = "data/shoplist.db"
	defaultRefreshMargin        = 60 * time.Second
	defaultSuggestionsPerMinute = 10
	defaultLocale               = "es"
	defaultPort                 = "8080"
)

// Config holds the configuration for the application.
type Config struct {
	SupabaseURL     string
	SupabaseAnonKey string

	// Gemini is optional; suggestions are disabled without a key.
	GeminiAPIKey         string
	GeminiModel          string
	SuggestionsPerMinute int

	DatabasePath         string
	SessionPersist       bool
	SessionRefreshMargin time.Duration

	Locale    string
	LogLevel  string
	LogFormat string
	Port      string
}

// BackendConfigured reports whether both Supabase settings are present.
func (c *Config) BackendConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}

// SuggestionsEnabled reports whether an AI credential is configured.
func (c *Config) SuggestionsEnabled() bool {
	return c.GeminiAPIKey != ""
}

// NewFromEnv creates a new Config object from environment variables.
// Values from a .env file in the working directory are loaded first but never
// override variables that are already set.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey: os.Getenv("SUPABASE_ANON_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getOr("GEMINI_MODEL", defaultGeminiModel),
		DatabasePath:    getOr("DATABASE_PATH", defaultDatabasePath),
		LogLevel:        getOr("LOG_LEVEL", "info"),
		LogFormat:       getOr("LOG_FORMAT", "text"),
		Port:            getOr("PORT", defaultPort),
	}

	locale := getOr("APP_LOCALE", defaultLocale)
	if locale != "es" && locale != "en" {
		return nil, fmt.Errorf("APP_LOCALE environment variable must be 'es' or 'en', got %q", locale)
	}
	cfg.Locale = locale

	persist, err := getBool("SESSION_PERSIST", true)
	if err != nil {
		return nil, err
	}
	cfg.SessionPersist = persist

	margin, err := getDuration("SESSION_REFRESH_MARGIN", defaultRefreshMargin)
	if err != nil {
		return nil, err
	}
	cfg.SessionRefreshMargin = margin

	perMinute, err := getInt("SUGGESTIONS_PER_MINUTE", defaultSuggestionsPerMinute)
	if err != nil {
		return nil, err
	}
	if perMinute < 1 {
		return nil, fmt.Errorf("SUGGESTIONS_PER_MINUTE environment variable must be at least 1")
	}
	cfg.SuggestionsPerMinute = perMinute

	return cfg, nil
}

func getOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s environment variable is not a valid boolean: %q", key, raw)
	}
	return v, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s environment variable is not a valid integer: %q", key, raw)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s environment variable is not a valid duration: %q", key, raw)
	}
	return v, nil
}
