package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Errorf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.MaxRows != 5000 {
		t.Errorf("MaxRows = %d, want 5000", cfg.MaxRows)
	}
	if cfg.MaxBytes != 5*1024*1024 {
		t.Errorf("MaxBytes = %d, want 5 MiB", cfg.MaxBytes)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if cfg.MetricsNamespace != "vorn" {
		t.Errorf("MetricsNamespace = %q", cfg.MetricsNamespace)
	}
	if cfg.DatabaseURL != "" || cfg.ExplainURL != "" {
		t.Errorf("optional collaborators should default to unset: %+v", cfg)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	setEnvEmpty(t)
	t.Setenv("VORN_BIND_ADDR", "127.0.0.1:9000")
	t.Setenv("VORN_MAX_ROWS", "10")
	t.Setenv("VORN_MAX_BYTES", "2048")
	t.Setenv("VORN_WORKERS", "3")
	t.Setenv("VORN_EXPLAIN_TIMEOUT", "2s")
	t.Setenv("DATABASE_URL", "  postgres://localhost/vorn  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != "127.0.0.1:9000" || cfg.MaxRows != 10 || cfg.MaxBytes != 2048 || cfg.Workers != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ExplainTimeout != 2*time.Second {
		t.Errorf("ExplainTimeout = %v", cfg.ExplainTimeout)
	}
	if cfg.DatabaseURL != "postgres://localhost/vorn" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		key, value string
		wantKey    string
	}{
		{"VORN_MAX_ROWS", "many", "VORN_MAX_ROWS parse error"},
		{"VORN_MAX_ROWS", "0", "VORN_MAX_ROWS must be positive"},
		{"VORN_MAX_BYTES", "-1", "VORN_MAX_BYTES must be positive"},
		{"VORN_WORKERS", "-2", "VORN_WORKERS must be >= 0"},
		{"VORN_SHUTDOWN_TIMEOUT", "soon", "VORN_SHUTDOWN_TIMEOUT parse error"},
		{"VORN_EXPLAIN_TIMEOUT", "0s", "VORN_EXPLAIN_TIMEOUT must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			setEnvEmpty(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("Load() error = %v, want it to contain %q", err, tt.wantKey)
			}
		})
	}
}

func setEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"VORN_BIND_ADDR",
		"VORN_SHUTDOWN_TIMEOUT",
		"VORN_METRICS_NAMESPACE",
		"VORN_MAX_ROWS",
		"VORN_MAX_BYTES",
		"VORN_WORKERS",
		"DATABASE_URL",
		"VORN_EXPLAIN_URL",
		"VORN_EXPLAIN_API_KEY",
		"VORN_EXPLAIN_MODEL",
		"VORN_EXPLAIN_TIMEOUT",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
