package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ClientConfig captures everything the driver client needs to reach the
// backend and persist its session. The backend URL must be configured; the
// other values have defaults.
type ClientConfig struct {
	APIURL   string `env:"CARPOOL_API_URL,required,notEmpty"`
	StateDir string `env:"CARPOOL_STATE_DIR"`
	Storage  string `env:"CARPOOL_STORAGE" envDefault:"file"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	PGDSN         string `env:"PG_DSN"`

	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:","`
	LocationTopic string   `env:"KAFKA_LOCATION_TOPIC" envDefault:"driver-locations"`

	MetricsAddr string `env:"CARPOOL_METRICS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	OSRMURL  string  `env:"OSRM_URL"`
	SpeedMps float64 `env:"CARPOOL_SPEED_MPS" envDefault:"12"`
}

// DevAPIConfig configures the development backend.
type DevAPIConfig struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisGeoKey   string `env:"REDIS_GEO_KEY" envDefault:"drivers_geo"`

	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:","`
	LocationTopic string   `env:"KAFKA_LOCATION_TOPIC" envDefault:"driver-locations"`

	StripeAPIKey string `env:"STRIPE_API_KEY"`
	Currency     string `env:"PAYMENT_CURRENCY" envDefault:"cdf"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// ConsumerConfig configures the location indexer that feeds the Kafka
// location topic into the geo index.
type ConsumerConfig struct {
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	LocationTopic string   `env:"KAFKA_LOCATION_TOPIC" envDefault:"driver-locations"`
	GroupID       string   `env:"KAFKA_GROUP" envDefault:"carpool-location-indexer"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisGeoKey   string `env:"REDIS_GEO_KEY" envDefault:"drivers_geo"`

	MetricsAddr string `env:"METRICS_ADDR" envDefault:":2112"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

var storageBackends = map[string]bool{"file": true, "memory": true, "redis": true, "postgres": true}

func LoadClientConfig() (ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	var errs []error

	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if u, err := url.Parse(cfg.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("CARPOOL_API_URL must be an absolute URL, got %q", cfg.APIURL))
	}

	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	if !storageBackends[cfg.Storage] {
		errs = append(errs, fmt.Errorf("CARPOOL_STORAGE must be one of file, memory, redis, postgres"))
	}
	if cfg.Storage == "redis" && cfg.RedisAddr == "" {
		errs = append(errs, fmt.Errorf("REDIS_ADDR is required for redis storage"))
	}
	if cfg.Storage == "postgres" && cfg.PGDSN == "" {
		errs = append(errs, fmt.Errorf("PG_DSN is required for postgres storage"))
	}
	if cfg.SpeedMps <= 0 {
		errs = append(errs, fmt.Errorf("CARPOOL_SPEED_MPS must be > 0"))
	}
	cfg.KafkaBrokers = trimAll(cfg.KafkaBrokers)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	return cfg, errors.Join(errs...)
}

func LoadDevAPIConfig() (DevAPIConfig, error) {
	var cfg DevAPIConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	var errs []error
	if len(cfg.JWTSecret) < 8 {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least 8 characters"))
	}
	if cfg.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be > 0"))
	}
	cfg.KafkaBrokers = trimAll(cfg.KafkaBrokers)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	return cfg, errors.Join(errs...)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	var cfg ConsumerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	var errs []error
	cfg.KafkaBrokers = trimAll(cfg.KafkaBrokers)
	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS must list at least one broker"))
	}
	if strings.TrimSpace(cfg.LocationTopic) == "" {
		errs = append(errs, fmt.Errorf("KAFKA_LOCATION_TOPIC must not be empty"))
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	return cfg, errors.Join(errs...)
}
