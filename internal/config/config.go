// Package config loads application configuration from the environment, with
// an optional YAML overrides file for non-secret settings.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/swiftel/request-handler/pkg/logger"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host           string   `env:"SERVER_HOST,default=0.0.0.0"`
	Port           int      `env:"SERVER_PORT,default=8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=*"`
}

// DatabaseConfig controls persistence. An empty DSN selects the in-memory
// store.
type DatabaseConfig struct {
	DSN string `env:"DATABASE_URL,default="`
}

// AuthConfig controls token issuance.
type AuthConfig struct {
	Secret      string        `env:"JWT_SECRET,default="`
	TTL         time.Duration `env:"JWT_EXPIRES_IN,default=8h"`
	RememberTTL time.Duration `env:"JWT_REMEMBER_ME_EXPIRES_IN,default=720h"`
}

// RateLimitConfig controls the per-caller request budget.
type RateLimitConfig struct {
	RequestsPerSecond int `env:"RATE_LIMIT_RPS,default=20" yaml:"requests_per_second"`
	Burst             int `env:"RATE_LIMIT_BURST,default=40" yaml:"burst"`
}

// RelayConfig controls the notification relay sweep.
type RelayConfig struct {
	Interval time.Duration `env:"RELAY_INTERVAL,default=15s" yaml:"interval"`
}

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Relay     RelayConfig
	Logging   logger.LoggingConfig
}

// overrides is the subset of settings the optional YAML file may set.
type overrides struct {
	Server struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	RateLimit *RateLimitConfig `yaml:"rate_limit"`
	Relay     *struct {
		Interval string `yaml:"interval"`
	} `yaml:"relay"`
	Logging   *struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Load reads .env (when present), decodes the environment, and applies the
// optional YAML overrides file named by CONFIG_FILE.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var ov overrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if len(ov.Server.AllowedOrigins) > 0 {
		cfg.Server.AllowedOrigins = ov.Server.AllowedOrigins
	}
	if ov.RateLimit != nil {
		cfg.RateLimit = *ov.RateLimit
	}
	if ov.Relay != nil && ov.Relay.Interval != "" {
		interval, err := time.ParseDuration(ov.Relay.Interval)
		if err != nil {
			return nil, fmt.Errorf("parse relay interval %q: %w", ov.Relay.Interval, err)
		}
		cfg.Relay.Interval = interval
	}
	if ov.Logging != nil {
		if ov.Logging.Level != "" {
			cfg.Logging.Level = ov.Logging.Level
		}
		if ov.Logging.Format != "" {
			cfg.Logging.Format = ov.Logging.Format
		}
	}

	return &cfg, nil
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}
