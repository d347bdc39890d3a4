// Package config loads runtime configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the server and its
// supporting services.
type Config struct {
	Port      int
	DBPath    string
	LogFormat string // "text" or "json"

	JWTSecret  string
	AppBaseURL string // public base URL used in magic-link emails

	ResendAPIKey string
	EmailFrom    string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAITimeout time.Duration

	GeminiAPIKey string
	GeminiModel  string

	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UsePathStyle bool
	S3Prefix       string
	S3URLTTL       time.Duration
}

// Load reads configuration from environment variables, applying sane
// defaults. A .env file in the working directory is loaded first when
// present; a missing one is not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg := Config{
		Port:      getInt("PORT", 8080),
		DBPath:    getEnv("DB_PATH", "data/photalabs.db"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		AppBaseURL: getEnv("APP_BASE_URL", "http://localhost:8080"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    getEnv("EMAIL_FROM", "Photalabs <noreply@photalabs.com>"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAITimeout: time.Second * time.Duration(getInt("OPENAI_TIMEOUT_SECONDS", 120)),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),

		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3Region:       os.Getenv("S3_REGION"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3UsePathStyle: getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:       getEnv("S3_PREFIX", "uploads"),
		S3URLTTL:       time.Minute * time.Duration(getInt("S3_URL_TTL_MINUTES", 60)),
	}

	var missing []string
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if cfg.S3Region == "" {
		missing = append(missing, "S3_REGION")
	}
	if cfg.S3AccessKey == "" {
		missing = append(missing, "S3_ACCESS_KEY")
	}
	if cfg.S3SecretKey == "" {
		missing = append(missing, "S3_SECRET_KEY")
	}
	if cfg.S3Bucket == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: missing required environment variables: %v", missing)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
