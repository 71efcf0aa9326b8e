package config

import (
	"os"
	"testing"

	"log/slog"
)

var configEnvKeys = []string{
	"PORT", "SERVER_PORT",
	"SERVER_READ_TIMEOUT_SECONDS", "SERVER_WRITE_TIMEOUT_SECONDS", "SERVER_SHUTDOWN_TIMEOUT_SECONDS",
	"LOG_LEVEL", "LOG_FORMAT",
	"DATABASE_URL",
	"FETCH_CONCURRENCY", "PIPELINE_CONCURRENCY", "PIPELINE_BATCH_SIZE",
	"FETCH_TIMEOUT_SECONDS", "STAGE_TIMEOUT_SECONDS",
	"FETCH_INTERVAL", "PIPELINE_INTERVAL", "DIGEST_TIME_OF_DAY",
	"HEALTH_DEGRADED_AFTER", "HEALTH_DEAD_AFTER",
	"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_EMBEDDING_MODEL",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		if _, ok := os.LookupEnv(key); ok {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Errorf("expected default port %q, got %q", defaultPort, cfg.Server.Port)
	}
	if cfg.Logging.Level != slog.LevelInfo {
		t.Errorf("expected default log level %v, got %v", slog.LevelInfo, cfg.Logging.Level)
	}
	if cfg.Logging.Format != defaultLogFormat {
		t.Errorf("expected default log format %q, got %q", defaultLogFormat, cfg.Logging.Format)
	}
	if cfg.Orchestra.FetchConcurrency != defaultFetchConcurrency {
		t.Errorf("expected default fetch concurrency %d, got %d", defaultFetchConcurrency, cfg.Orchestra.FetchConcurrency)
	}
	if cfg.Orchestra.DegradedAfter != defaultDegradedAfter || cfg.Orchestra.DeadAfter != defaultDeadAfter {
		t.Errorf("unexpected default health thresholds: %d/%d", cfg.Orchestra.DegradedAfter, cfg.Orchestra.DeadAfter)
	}
	if cfg.Orchestra.BatchSize != defaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", defaultBatchSize, cfg.Orchestra.BatchSize)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	clearConfigEnv(t)

	overrides := map[string]string{
		"SERVER_PORT":           "9090",
		"LOG_LEVEL":             "debug",
		"LOG_FORMAT":            "text",
		"FETCH_CONCURRENCY":     "3",
		"PIPELINE_CONCURRENCY":  "2",
		"PIPELINE_BATCH_SIZE":   "50",
		"FETCH_INTERVAL":        "30m",
		"HEALTH_DEGRADED_AFTER": "5",
		"HEALTH_DEAD_AFTER":     "20",
	}
	for key, value := range overrides {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected overridden port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Logging.Level != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.Logging.Level)
	}
	if cfg.Orchestra.FetchConcurrency != 3 {
		t.Errorf("expected fetch concurrency 3, got %d", cfg.Orchestra.FetchConcurrency)
	}
	if cfg.Orchestra.BatchSize != 50 {
		t.Errorf("expected batch size 50, got %d", cfg.Orchestra.BatchSize)
	}
	if cfg.Orchestra.FetchInterval.Minutes() != 30 {
		t.Errorf("expected fetch interval 30m, got %v", cfg.Orchestra.FetchInterval)
	}
	if cfg.Orchestra.DegradedAfter != 5 || cfg.Orchestra.DeadAfter != 20 {
		t.Errorf("unexpected health thresholds: %d/%d", cfg.Orchestra.DegradedAfter, cfg.Orchestra.DeadAfter)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad log format", key: "LOG_FORMAT", val: "pretty"},
		{name: "bad log level", key: "LOG_LEVEL", val: "verbose"},
		{name: "negative concurrency", key: "FETCH_CONCURRENCY", val: "-1"},
		{name: "zero batch size", key: "PIPELINE_BATCH_SIZE", val: "0"},
		{name: "bad interval", key: "FETCH_INTERVAL", val: "soon"},
		{name: "bad timeout", key: "FETCH_TIMEOUT_SECONDS", val: "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(tt.key, tt.val)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q, got nil", tt.key, tt.val)
			}
		})
	}
}

func TestLoadRejectsInvertedHealthThresholds(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HEALTH_DEGRADED_AFTER", "10")
	t.Setenv("HEALTH_DEAD_AFTER", "3")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for inverted thresholds, got nil")
	}
}
