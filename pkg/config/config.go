package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Every environment variable is read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Session storage
	Sessions SessionConfig

	// Training pipeline
	Training TrainingConfig

	// Database (optional session index)
	Database DatabaseConfig

	// Redis (optional status cache)
	Redis RedisConfig

	// Completion webhook (optional)
	WebhookURL string

	// Logging
	LogLevel  string
	LogFormat string
}

// SessionConfig holds session directory settings.
type SessionConfig struct {
	// Root is the directory all per-session working areas live under.
	Root string

	// Retention is how long a session directory may stay untouched
	// before the cleanup sweep removes it.
	Retention time.Duration

	// CacheTTL is the TTL for status documents in the remote cache.
	CacheTTL time.Duration
}

// TrainingConfig holds training pipeline settings.
type TrainingConfig struct {
	// Engines is the ordered list of AutoML engines to run per session.
	Engines []string

	// ContinueOnFailure decides whether one engine failing aborts the
	// whole session (false, default) or is skipped so the remaining
	// engines still produce results.
	ContinueOnFailure bool

	// SubmitRate / SubmitBurst limit training submissions on the API.
	SubmitRate  float64
	SubmitBurst int
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string // empty disables the session index

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8091"),
		Env:  getEnv("ENV", "development"),

		Sessions: SessionConfig{
			Root:      getEnv("SESSIONS_ROOT", "./training_sessions"),
			Retention: getEnvAsDuration("SESSION_RETENTION", "48h"),
			CacheTTL:  getEnvAsDuration("SESSION_CACHE_TTL", "10m"),
		},

		Training: TrainingConfig{
			Engines:           getEnvAsList("TRAIN_ENGINES", "autogluon,pycaret"),
			ContinueOnFailure: getEnvAsBool("TRAIN_CONTINUE_ON_FAILURE", false),
			SubmitRate:        getEnvAsFloat("TRAIN_SUBMIT_RATE", 1.0),
			SubmitBurst:       getEnvAsInt("TRAIN_SUBMIT_BURST", 5),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Sessions.Root == "" {
		return fmt.Errorf("SESSIONS_ROOT must not be empty")
	}

	if c.Sessions.Retention <= 0 {
		return fmt.Errorf("SESSION_RETENTION must be positive")
	}

	if len(c.Training.Engines) == 0 {
		return fmt.Errorf("TRAIN_ENGINES must name at least one engine")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsList(key, defaultValue string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
