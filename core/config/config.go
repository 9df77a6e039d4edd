package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OTel     OTelConfig
	Storage  StorageConfig
	Scorer   ScorerConfig
	Retriage RetriageConfig
	Events   EventsConfig
	Env      string
	Port     string
	NodeID   int64
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string

	// SampleRatio is the fraction of root traces kept, in [0, 1].
	SampleRatio float64
}

// Storage backends accepted by StorageConfig.Backend.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendArangoDB = "arangodb"
)

type StorageConfig struct {
	Backend string
	Path    string // sqlite file

	RedisURL       string
	RedisNamespace string

	PostgresDSN string
	MaxConns    int32
	MinConns    int32

	ArangoURL      string
	ArangoUsername string
	ArangoPassword string
	ArangoDatabase string
}

type ScorerConfig struct {
	Provider   string // "openai" or "anthropic"
	APIKey     string
	BaseURL    string // Optional: for custom endpoints
	Model      string
	MaxTokens  int
	MaxRetries int
}

type RetriageConfig struct {
	Enabled   bool
	Interval  time.Duration
	Threshold float64
}

type EventsConfig struct {
	RedisURL string
	Stream   string
}

type ServiceType string

const (
	ServiceTypeServer ServiceType = "server"
	ServiceTypeWorker ServiceType = "worker"
	ServiceTypeCLI    ServiceType = "cli"
)

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.server for the API server
//   - .env.worker for the standalone re-triage worker
//
// Falls back to .env if service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("TRIAGE_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:    getEnv("TRIAGE_ENV", "development"),
		Port:   getEnv("PORT", "8080"),
		NodeID: getEnvInt64("NODE_ID", 1),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "triage-"+string(serviceType)),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			SampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", BackendSQLite),
			Path:           getEnv("STORAGE_PATH", "data/triage.db"),
			RedisURL:       getEnv("STORAGE_REDIS_URL", "redis://localhost:6379/0"),
			RedisNamespace: getEnv("STORAGE_REDIS_NAMESPACE", "triage"),
			PostgresDSN:    getEnv("DATABASE_URL", ""),
			MaxConns:       getEnvInt32("DB_MAX_CONNS", 10),
			MinConns:       getEnvInt32("DB_MIN_CONNS", 2),
			ArangoURL:      getEnv("ARANGO_URL", ""),
			ArangoUsername: getEnv("ARANGO_USERNAME", ""),
			ArangoPassword: getEnv("ARANGO_PASSWORD", ""),
			ArangoDatabase: getEnv("ARANGO_DATABASE", "triage"),
		},
		Scorer: ScorerConfig{
			Provider:   getEnv("SCORER_LLM_PROVIDER", "openai"),
			APIKey:     getEnv("SCORER_LLM_API_KEY", ""),
			BaseURL:    getEnv("SCORER_LLM_BASE_URL", ""),
			Model:      getEnv("SCORER_LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:  getEnvInt("SCORER_LLM_MAX_TOKENS", 1024),
			MaxRetries: getEnvInt("SCORER_LLM_MAX_RETRIES", 2),
		},
		Retriage: RetriageConfig{
			Enabled:   getEnvBool("RETRIAGE_ENABLED", true),
			Interval:  getEnvDuration("RETRIAGE_INTERVAL", time.Minute),
			Threshold: getEnvFloat("RETRIAGE_THRESHOLD", 0.1),
		},
		Events: EventsConfig{
			RedisURL: getEnv("EVENTS_REDIS_URL", ""),
			Stream:   getEnv("EVENTS_STREAM", "triage_events"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that would fail later at wiring time.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("STORAGE_PATH is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("STORAGE_REDIS_URL is required for the redis backend")
		}
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	case BackendArangoDB:
		if c.Storage.ArangoURL == "" || c.Storage.ArangoUsername == "" {
			return fmt.Errorf("ARANGO_URL and ARANGO_USERNAME are required for the arangodb backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	if c.Scorer.APIKey != "" && c.Scorer.Provider != "openai" && c.Scorer.Provider != "anthropic" {
		return fmt.Errorf("unknown SCORER_LLM_PROVIDER %q", c.Scorer.Provider)
	}

	if c.Retriage.Interval <= 0 {
		return fmt.Errorf("RETRIAGE_INTERVAL must be positive")
	}
	if c.OTel.SampleRatio < 0 || c.OTel.SampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be within [0, 1], got %v", c.OTel.SampleRatio)
	}
	if c.Retriage.Threshold < 0 {
		return fmt.Errorf("RETRIAGE_THRESHOLD must not be negative")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c ScorerConfig) Enabled() bool {
	return c.APIKey != "" && (c.Provider == "openai" || c.Provider == "anthropic")
}

func (c EventsConfig) Enabled() bool {
	return c.RedisURL != "" && c.Stream != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
