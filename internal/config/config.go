package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Logging     LoggingConfig
	Tracing     TracingConfig
	RateLimit   RateLimitConfig
	Uploads     UploadsConfig
	Jobs        JobsConfig
	Scoring     ScoringConfig
	Environment string
}

type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdle        int
}

// LoggingConfig controls the zerolog output. Format is "json" or "console".
type LoggingConfig struct {
	Level  string
	Format string
}

// TracingConfig controls OpenTelemetry trace export.
// Exporter is one of "stdout", "otlp", or "none".
type TracingConfig struct {
	Enabled      bool
	Exporter     string
	ServiceName  string
	OTLPEndpoint string
	SampleRate   float64
}

type RateLimitConfig struct {
	PublicPerMinute int
	UploadPerMinute int
	TrustedProxies  []string
}

// UploadsConfig governs the staging area for batch dataset uploads.
// Staged files older than Retention are removed by the periodic cleanup job.
type UploadsConfig struct {
	Dir       string
	MaxBytes  int64
	Retention time.Duration
}

type JobsConfig struct {
	BatchWorkers         int
	RetryBatchPrediction int
	HistoryRetentionDays int
}

// ScoringConfig points at an optional YAML file overriding the built-in
// default model parameters.
type ScoringConfig struct {
	ModelPath string
}

func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvInt("SERVER_PORT", 8080),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
			MaxIdle:        getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			Exporter:     getEnv("TRACING_EXPORTER", "none"),
			ServiceName:  getEnv("TRACING_SERVICE_NAME", "riskserver"),
			OTLPEndpoint: getEnv("TRACING_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute: getEnvInt("RATE_LIMIT_PUBLIC", 120),
			UploadPerMinute: getEnvInt("RATE_LIMIT_UPLOAD", 10),
			TrustedProxies:  getEnvList("RATE_LIMIT_TRUSTED_PROXIES"),
		},
		Uploads: UploadsConfig{
			Dir:       getEnv("UPLOAD_DIR", "/tmp/riskserver-uploads"),
			MaxBytes:  int64(getEnvInt("UPLOAD_MAX_BYTES", 25<<20)),
			Retention: time.Duration(getEnvInt("UPLOAD_RETENTION_MINUTES", 60)) * time.Minute,
		},
		Jobs: JobsConfig{
			BatchWorkers:         getEnvInt("JOB_BATCH_WORKERS", 4),
			RetryBatchPrediction: getEnvInt("JOB_RETRY_BATCH_PREDICTION", 3),
			HistoryRetentionDays: getEnvInt("JOB_HISTORY_RETENTION_DAYS", 30),
		},
		Scoring: ScoringConfig{
			ModelPath: getEnv("SCORING_MODEL_PATH", ""),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Uploads.MaxBytes <= 0 {
		return Config{}, fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if cfg.Jobs.BatchWorkers < 1 {
		return Config{}, fmt.Errorf("JOB_BATCH_WORKERS must be at least 1")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
