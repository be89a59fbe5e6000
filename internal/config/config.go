package config

import (
	"fmt"
	"net/url"
	"strings"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
)

// Storage drivers.
const (
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`

	// Session storage
	StorageDriver     string `env:"STORAGE_DRIVER" envDefault:"redis"`
	StorageQuotaBytes int    `env:"STORAGE_QUOTA_BYTES" envDefault:"5242880"`
	SessionTTLHours   int    `env:"SESSION_TTL_HOURS" envDefault:"0"`
	TabIdleMinutes    int    `env:"SESSION_TAB_IDLE_MINUTES" envDefault:"30"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Backend REST API
	BackendURL            string `env:"BACKEND_URL" envDefault:"http://127.0.0.1:8000"`
	BackendTimeoutSeconds int    `env:"BACKEND_TIMEOUT_SECONDS" envDefault:"10"`
	BackendMaxRetries     int    `env:"BACKEND_MAX_RETRIES" envDefault:"2"`

	// Circuit breaker for backend calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Cart totals
	TaxRate float64 `env:"CART_TAX_RATE" envDefault:"0.2"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000,http://127.0.0.1:3000" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow redis command logging
	SlowCommandThresholdMs int `env:"LOG_SLOW_COMMAND_MS" envDefault:"200"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants. pkg/config.Load calls it.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	switch c.StorageDriver {
	case StorageRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis storage driver")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q: must be %s or %s", c.StorageDriver, StorageRedis, StorageMemory)
	}

	if c.StorageQuotaBytes < 0 {
		return fmt.Errorf("STORAGE_QUOTA_BYTES must not be negative")
	}
	if c.SessionTTLHours < 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must not be negative")
	}

	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid BACKEND_URL %q", c.BackendURL)
	}

	if c.TaxRate < 0 || c.TaxRate > 1 {
		return fmt.Errorf("CART_TAX_RATE must be between 0 and 1, got %v", c.TaxRate)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %v", c.OTELSampleRate)
	}

	if c.KafkaEnabled && len(c.Brokers()) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	return nil
}

// Brokers returns the configured Kafka brokers without blank entries.
func (c *Config) Brokers() []string {
	return nonEmpty(c.KafkaBrokers)
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
