package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv    string
	LogLevel  string
	OutputDir string

	LeonardoAPIKey  string
	LeonardoBaseURL string
	LeonardoModelID string
	RequestTimeout  time.Duration

	PollInterval    time.Duration
	PollMaxAttempts int
	PollTimeout     time.Duration

	RequestDelay time.Duration
	Concurrency  int

	FetchAttempts  int
	FetchBackoff   time.Duration
	FetchMaxBytes  int64
	FetchMaxPixels int64

	DatabaseURL string
	MetricsAddr string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  os.Getenv("LOG_LEVEL"),
		OutputDir: getEnv("OUTPUT_ROOT", "."),

		LeonardoAPIKey:  strings.TrimSpace(os.Getenv("LEONARDO_API_KEY")),
		LeonardoBaseURL: getEnv("LEONARDO_BASE_URL", "https://cloud.leonardo.ai/api/rest/v1"),
		LeonardoModelID: os.Getenv("LEONARDO_MODEL_ID"),
		RequestTimeout:  time.Second * time.Duration(getEnvInt("LEONARDO_REQUEST_TIMEOUT_SECONDS", 30)),

		PollInterval:    time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", 2000)),
		PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 150),
		PollTimeout:     time.Second * time.Duration(getEnvInt("POLL_TIMEOUT_SECONDS", 300)),

		RequestDelay: time.Millisecond * time.Duration(getEnvInt("REQUEST_DELAY_MS", 3000)),
		Concurrency:  getEnvInt("CONCURRENCY", 1),

		FetchAttempts:  getEnvInt("FETCH_ATTEMPTS", 3),
		FetchBackoff:   time.Millisecond * time.Duration(getEnvInt("FETCH_BACKOFF_MS", 500)),
		FetchMaxBytes:  int64(getEnvInt("FETCH_MAX_BYTES", 64<<20)),
		FetchMaxPixels: int64(getEnvInt("FETCH_MAX_PIXELS", 32<<20)),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.PollMaxAttempts <= 0 && cfg.PollTimeout <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS or POLL_TIMEOUT_SECONDS must be positive")
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("CONCURRENCY must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.FetchAttempts < 1 {
		cfg.FetchAttempts = 1
	}
	if cfg.RequestDelay < 0 {
		cfg.RequestDelay = 0
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}
