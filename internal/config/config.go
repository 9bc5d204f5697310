// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Ppratik765/Beyond-The-Apex-Quali-only/internal/session/postgresstore"
)

// Cache backends.
const (
	CacheBackendSQLite   = "sqlite"
	CacheBackendPostgres = "postgres"
	CacheBackendMemory   = "memory"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the configuration shared by every command.
type Config struct {
	Port        string
	Environment string

	OTelEnabled  bool
	OTLPEndpoint string

	OpenF1BaseURL   string
	ProviderTimeout time.Duration

	CacheBackend string
	CacheDir     string
	CacheTTL     time.Duration

	Database postgresstore.Config

	CORSAllowedOrigins []string
	AdminSigningKey    string
	RequireTLS         bool

	PubSubProjectID    string
	PubSubSubscription string

	CompareConcurrency int
	PrefetchWorkers    int
}

// FromEnv reads the configuration from environment variables. Malformed
// numbers and durations fall back to their defaults.
func FromEnv() Config {
	return Config{
		Port:        getEnvOrDefault("APP_PORT", "8080"),
		Environment: getEnvOrDefault("APP_ENV", "development"),

		OTelEnabled:  os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		OpenF1BaseURL:   getEnvOrDefault("OPENF1_BASE_URL", "https://api.openf1.org/v1"),
		ProviderTimeout: getDurationOrDefault("PROVIDER_TIMEOUT", 20*time.Second),

		CacheBackend: strings.ToLower(getEnvOrDefault("CACHE_BACKEND", CacheBackendSQLite)),
		CacheDir:     getEnvOrDefault("CACHE_DIR", "./cache"),
		CacheTTL:     getDurationOrDefault("CACHE_TTL", 24*time.Hour),

		Database: postgresstore.Config{
			Host:            getEnvOrDefault("DB_HOST", "localhost"),
			Port:            getIntOrDefault("DB_PORT", 5432),
			User:            getEnvOrDefault("DB_USER", "apex"),
			Password:        getEnvOrDefault("DB_PASSWORD", "localdev"),
			Database:        getEnvOrDefault("DB_NAME", "apex"),
			SSLMode:         getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getIntOrDefault("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntOrDefault("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getDurationOrDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		AdminSigningKey:    os.Getenv("ADMIN_SIGNING_KEY"),
		RequireTLS:         os.Getenv("REQUIRE_TLS") == "true",

		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: getEnvOrDefault("PUBSUB_SUBSCRIPTION", "session-prefetch"),

		CompareConcurrency: getIntOrDefault("COMPARE_CONCURRENCY", 4),
		PrefetchWorkers:    getIntOrDefault("PREFETCH_WORKERS", 4),
	}
}

// Validate checks values that have no safe fallback.
func (c Config) Validate() error {
	switch c.CacheBackend {
	case CacheBackendSQLite, CacheBackendPostgres, CacheBackendMemory:
	default:
		return fmt.Errorf("%w: unknown CACHE_BACKEND %q", ErrInvalidConfig, c.CacheBackend)
	}
	if c.CompareConcurrency < 1 {
		return fmt.Errorf("%w: COMPARE_CONCURRENCY must be positive", ErrInvalidConfig)
	}
	if c.Environment == "production" && c.AdminSigningKey == "" {
		return fmt.Errorf("%w: ADMIN_SIGNING_KEY is required in production", ErrInvalidConfig)
	}
	return nil
}

// IsDevelopment reports whether the process runs in a development environment.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
