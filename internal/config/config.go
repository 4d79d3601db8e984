package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Embedding provider
	EmbedProvider string // fastembed, tei or openai
	EmbedModel    string
	EmbedURL      string
	EmbedAPIKey   string
	EmbedCacheDir string
	EmbedTimeout  time.Duration

	// Ranking runs
	WorkerCount int // 0 uses the pipeline default
	BatchSize   int
	MaxPages    int
	TaskTimeout time.Duration

	// Job queue
	JobWorkers   int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	// Metrics export; empty endpoint keeps metrics in-process
	OTelEndpoint       string
	OTelInsecure       bool
	OTelExportInterval time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first without overriding set variables.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOCRANK_API_KEY"),

		EmbedProvider: envOr("EMBED_PROVIDER", "fastembed"),
		EmbedModel:    os.Getenv("EMBED_MODEL"),
		EmbedURL:      os.Getenv("EMBED_URL"),
		EmbedAPIKey:   os.Getenv("EMBED_API_KEY"),
		EmbedCacheDir: envOr("EMBED_CACHE_DIR", "local_cache"),
		EmbedTimeout:  envDuration("EMBED_TIMEOUT", 60*time.Second),

		WorkerCount: envInt("WORKER_COUNT", 0),
		BatchSize:   envInt("BATCH_SIZE", 16),
		MaxPages:    envInt("MAX_PAGES", 15),
		TaskTimeout: envDuration("TASK_TIMEOUT", 0),

		JobWorkers:   envInt("JOB_WORKERS", 1),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 104857600), // 100MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", false),

		OTelEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelInsecure:       envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		OTelExportInterval: envDuration("OTEL_EXPORT_INTERVAL", 15*time.Second),
	}

	if cfg.WorkerCount < 0 {
		cfg.WorkerCount = 0
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > 16 {
		cfg.BatchSize = 16
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 15
	}
	if cfg.TaskTimeout < 0 {
		cfg.TaskTimeout = 0
	}
	if cfg.JobWorkers <= 0 {
		cfg.JobWorkers = 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 104857600
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Validate checks settings needed by every command.
func (c Config) Validate() error {
	switch c.EmbedProvider {
	case "fastembed":
	case "tei", "openai":
		if c.EmbedURL == "" {
			return fmt.Errorf("EMBED_URL is required for provider %q", c.EmbedProvider)
		}
	default:
		return fmt.Errorf("EMBED_PROVIDER must be fastembed, tei or openai, got %q", c.EmbedProvider)
	}
	return nil
}

// ValidateServer additionally checks settings needed by the HTTP API.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("DOCRANK_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
