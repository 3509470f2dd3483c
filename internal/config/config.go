// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the HTTP service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	MaxRows  int
	MaxBytes int64
	Workers  int

	DatabaseURL string

	ExplainURL     string
	ExplainAPIKey  string
	ExplainModel   string
	ExplainTimeout time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("VORN_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("VORN_METRICS_NAMESPACE", "vorn"),
		DatabaseURL:      trimmed("DATABASE_URL"),
		ExplainURL:       trimmed("VORN_EXPLAIN_URL"),
		ExplainAPIKey:    trimmed("VORN_EXPLAIN_API_KEY"),
		ExplainModel:     envOrDefault("VORN_EXPLAIN_MODEL", "gpt-4.1-mini"),
		ShutdownTimeout:  15 * time.Second,
		ExplainTimeout:   20 * time.Second,
		MaxRows:          5000,
		MaxBytes:         5 << 20,
		Workers:          0,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("VORN_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ExplainTimeout, err = durationFromEnv("VORN_EXPLAIN_TIMEOUT", cfg.ExplainTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxRows, err = intFromEnv("VORN_MAX_ROWS", cfg.MaxRows)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxBytes, err = int64FromEnv("VORN_MAX_BYTES", cfg.MaxBytes)
	if err != nil {
		return Config{}, err
	}
	// 0 means one worker per CPU.
	cfg.Workers, err = intFromEnv("VORN_WORKERS", cfg.Workers)
	if err != nil {
		return Config{}, err
	}

	if cfg.MaxRows <= 0 {
		return Config{}, fmt.Errorf("VORN_MAX_ROWS must be positive")
	}
	if cfg.MaxBytes <= 0 {
		return Config{}, fmt.Errorf("VORN_MAX_BYTES must be positive")
	}
	if cfg.Workers < 0 {
		return Config{}, fmt.Errorf("VORN_WORKERS must be >= 0")
	}
	if cfg.ShutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("VORN_SHUTDOWN_TIMEOUT must be positive")
	}
	if cfg.ExplainTimeout <= 0 {
		return Config{}, fmt.Errorf("VORN_EXPLAIN_TIMEOUT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := trimmed(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func int64FromEnv(key string, fallback int64) (int64, error) {
	v := trimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
