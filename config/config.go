package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	VideoDB       VideoDBConfig
	Webhook       WebhookConfig
	Transcription TranscriptionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/copilot?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// VideoDBConfig holds the remote indexing platform settings. The API key is
// per-user (stored at registration), only the base URL is global.
type VideoDBConfig struct {
	BaseURL      string // override only; empty = platform default below
	InsightModel string // model tier for insight generation
}

// WebhookConfig holds the publicly reachable callback URL handed to the
// platform when creating capture sessions.
type WebhookConfig struct {
	URL string
}

// TranscriptionConfig bounds the rtstream activation poll loop.
type TranscriptionConfig struct {
	MaxAttempts   int
	RetryDelaySec int
}

// DefaultVideoDBBaseURL is used when VIDEODB_API_URL is not set.
const DefaultVideoDBBaseURL = "https://api.videodb.io"

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "copilot"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		VideoDB: VideoDBConfig{
			BaseURL:      getEnv("VIDEODB_API_URL", ""),
			InsightModel: getEnv("INSIGHT_MODEL", "ultra"),
		},
		Webhook: WebhookConfig{
			URL: getEnv("WEBHOOK_URL", ""),
		},
		Transcription: TranscriptionConfig{
			MaxAttempts:   getEnvInt("TRANSCRIPTION_POLL_MAX_ATTEMPTS", 150),
			RetryDelaySec: getEnvInt("TRANSCRIPTION_POLL_DELAY_SEC", 2),
		},
	}
	if strings.TrimSpace(cfg.Webhook.URL) == "" {
		cfg.Webhook.URL = fmt.Sprintf("http://localhost:%s/webhook", cfg.Server.Port)
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
