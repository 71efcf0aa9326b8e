package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	Orchestra OrchestrationConfig
	OpenAI    OpenAIConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds Postgres connection parameters. An empty URL means
// the process runs on in-memory repositories (development mode).
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	ConnectTimeout     time.Duration
}

// OrchestrationConfig tunes the task orchestration engine: worker pool
// caps, external call timeouts, batch sizing, health thresholds and
// default cadences.
type OrchestrationConfig struct {
	FetchConcurrency    int
	PipelineConcurrency int
	FetchTimeout        time.Duration
	StageTimeout        time.Duration
	BatchSize           int
	FetchInterval       time.Duration
	PipelineInterval    time.Duration
	DigestTimeOfDay     string // "HH:MM"
	DegradedAfter       uint   // consecutive failures before degraded
	DeadAfter           uint   // consecutive failures before dead
}

// OpenAIConfig holds enrichment provider settings. An empty APIKey makes
// the process fall back to the rule-based enricher; an empty
// EmbeddingModel makes the vectorize stage report skipped.
type OpenAIConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultFetchConcurrency    = 6
	defaultPipelineConcurrency = 4
	defaultFetchTimeout        = 30 * time.Second
	defaultStageTimeout        = 120 * time.Second
	defaultBatchSize           = 25
	defaultFetchInterval       = 15 * time.Minute
	defaultPipelineInterval    = 5 * time.Minute
	defaultDigestTimeOfDay     = "07:00"
	defaultDegradedAfter       = 3
	defaultDeadAfter           = 10

	defaultOpenAIModel = "gpt-4o-mini"
	defaultTemperature = 0.3
	defaultMaxTokens   = 1500
)

// Load reads configuration from environment variables, applying defaults
// when values are not provided.
func Load() (Config, error) {
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:                os.Getenv("DATABASE_URL"),
			MaxConnections:     25,
			MaxIdleConnections: 5,
			ConnMaxLifetime:    5 * time.Minute,
			ConnectTimeout:     10 * time.Second,
		},
		Orchestra: OrchestrationConfig{
			FetchConcurrency:    defaultFetchConcurrency,
			PipelineConcurrency: defaultPipelineConcurrency,
			FetchTimeout:        defaultFetchTimeout,
			StageTimeout:        defaultStageTimeout,
			BatchSize:           defaultBatchSize,
			FetchInterval:       defaultFetchInterval,
			PipelineInterval:    defaultPipelineInterval,
			DigestTimeOfDay:     getEnv("DIGEST_TIME_OF_DAY", defaultDigestTimeOfDay),
			DegradedAfter:       defaultDegradedAfter,
			DeadAfter:           defaultDeadAfter,
		},
		OpenAI: OpenAIConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			Model:          getEnv("OPENAI_MODEL", defaultOpenAIModel),
			EmbeddingModel: os.Getenv("OPENAI_EMBEDDING_MODEL"),
			Temperature:    defaultTemperature,
			MaxTokens:      defaultMaxTokens,
		},
	}

	for _, f := range []struct {
		env string
		dst *time.Duration
	}{
		{"SERVER_READ_TIMEOUT_SECONDS", &cfg.Server.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT_SECONDS", &cfg.Server.WriteTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT_SECONDS", &cfg.Server.ShutdownTimeout},
		{"FETCH_TIMEOUT_SECONDS", &cfg.Orchestra.FetchTimeout},
		{"STAGE_TIMEOUT_SECONDS", &cfg.Orchestra.StageTimeout},
	} {
		if v := os.Getenv(f.env); v != "" {
			d, err := parseSeconds(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", f.env, err)
			}
			*f.dst = d
		}
	}

	for _, f := range []struct {
		env string
		dst *int
	}{
		{"FETCH_CONCURRENCY", &cfg.Orchestra.FetchConcurrency},
		{"PIPELINE_CONCURRENCY", &cfg.Orchestra.PipelineConcurrency},
		{"PIPELINE_BATCH_SIZE", &cfg.Orchestra.BatchSize},
	} {
		if v := os.Getenv(f.env); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return Config{}, fmt.Errorf("invalid %s: must be a positive integer", f.env)
			}
			*f.dst = n
		}
	}

	if v := os.Getenv("FETCH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid FETCH_INTERVAL: must be a positive duration")
		}
		cfg.Orchestra.FetchInterval = d
	}

	if v := os.Getenv("PIPELINE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid PIPELINE_INTERVAL: must be a positive duration")
		}
		cfg.Orchestra.PipelineInterval = d
	}

	if v := os.Getenv("HEALTH_DEGRADED_AFTER"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("invalid HEALTH_DEGRADED_AFTER: %w", err)
		}
		cfg.Orchestra.DegradedAfter = uint(n)
	}

	if v := os.Getenv("HEALTH_DEAD_AFTER"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("invalid HEALTH_DEAD_AFTER: %w", err)
		}
		cfg.Orchestra.DeadAfter = uint(n)
	}

	if cfg.Orchestra.DegradedAfter >= cfg.Orchestra.DeadAfter {
		return Config{}, fmt.Errorf("health thresholds out of order: degraded (%d) must be below dead (%d)",
			cfg.Orchestra.DegradedAfter, cfg.Orchestra.DeadAfter)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
