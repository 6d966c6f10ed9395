// Package config provides environment variable-based configuration loading.
//
// Purpose:
//
//	This package defines the bridge configuration structure and provides
//	functions to load it from environment variables using envconfig. The
//	client registry itself (titles, options, redirect URIs, global secret)
//	lives in the YAML file pointed to by CLIENTS_FILE.
//
// Dependencies:
//   - github.com/kelseyhightower/envconfig: Environment variable parsing
//
// Key Responsibilities:
//   - Config struct defines all service configuration fields
//   - Load reads and validates environment variables
//   - MustLoad exits the process if configuration is invalid
//
// Debugging Notes:
//   - Required fields: OAUTH_HMAC_SECRET, SESSION_HASH_KEY
//   - DATABASE_URL empty means an empty in-memory member store (nobody can log in)
//   - REDIS_ADDR empty switches sessions to memory and bindings to files
//   - OAuthHMACSecret must be at least 32 bytes (validated by provider)
//
// Thread Safety:
//   - Config struct is read-only after loading
//
// Error Handling:
//   - Load returns wrapped errors from envconfig.Process and Validate
//   - MustLoad writes to stderr and exits on error
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Backend names accepted by SESSION_BACKEND and BINDING_BACKEND.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendFile   = "file"
)

// Config represents runtime configuration for the bridge.
type Config struct {
	// ServiceName is emitted in logs and metrics.
	ServiceName string `envconfig:"SERVICE_NAME" default:"galette-oauth2"`
	// HTTPPort is the port the HTTP server listens on.
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`
	// LogLevel controls the zerolog level (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// Environment describes the current deployment environment.
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	// BasePath prefixes every redirect the bridge emits (e.g. "/plugins/oauth2").
	BasePath string `envconfig:"PUBLIC_BASE_PATH" default:""`

	// DatabaseURL is the Postgres connection string of the Galette database.
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`
	// TablePrefix is the Galette table prefix.
	TablePrefix string `envconfig:"DB_TABLE_PREFIX" default:"galette_"`

	// RedisAddr is the host:port of the Redis instance backing sessions, bindings and lockout.
	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// ClientsFile is the YAML client registry.
	ClientsFile string `envconfig:"CLIENTS_FILE" default:"config/config.yml"`
	// ClientIDPrefix is required on undeclared client ids.
	ClientIDPrefix string `envconfig:"CLIENT_ID_PREFIX" default:"galette_"`

	// BindingBackend selects the durable redirect binding store (redis or file).
	BindingBackend string        `envconfig:"BINDING_BACKEND" default:"file"`
	BindingDir     string        `envconfig:"BINDING_DIR" default:"cache"`
	BindingTTL     time.Duration `envconfig:"BINDING_TTL" default:"0s"`

	// SessionBackend selects where session state lives (redis or memory).
	SessionBackend      string        `envconfig:"SESSION_BACKEND" default:"memory"`
	SessionHashKey      string        `envconfig:"SESSION_HASH_KEY" required:"true"`
	SessionBlockKey     string        `envconfig:"SESSION_BLOCK_KEY" default:""`
	SessionTTL          time.Duration `envconfig:"SESSION_TTL" default:"1h"`
	SessionCookieName   string        `envconfig:"SESSION_COOKIE_NAME" default:"galette_oauth2"`
	SessionCookieSecure bool          `envconfig:"SESSION_COOKIE_SECURE" default:"true"`

	// OAuthHMACSecret seeds the HMAC strategy used by fosite.
	OAuthHMACSecret string `envconfig:"OAUTH_HMAC_SECRET" required:"true"`
	// OAuthEnforcePKCE requires PKCE on every authorize request.
	OAuthEnforcePKCE bool `envconfig:"OAUTH_ENFORCE_PKCE" default:"false"`
	// OAuthHashCost is the bcrypt cost used to hash the global client secret.
	OAuthHashCost int `envconfig:"OAUTH_HASH_COST" default:"10"`

	// AdminLogin is the Galette superadmin login, never allowed through OAuth.
	AdminLogin string `envconfig:"ADMIN_LOGIN" default:"admin"`
	// AdminPasswordHash is the superadmin password hash (bcrypt or md5).
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" default:""`

	// KafkaBrokers is a comma-separated list of Kafka brokers for audit events.
	// If empty, audit events are logged instead.
	KafkaBrokers  string `envconfig:"KAFKA_BROKERS" default:""`
	KafkaTopic    string `envconfig:"KAFKA_TOPIC" default:"audit.oauth2"`
	KafkaClientID string `envconfig:"KAFKA_CLIENT_ID" default:"galette-oauth2"`

	// LockoutMaxAttempts is the number of failed logins tolerated per window.
	LockoutMaxAttempts     int `envconfig:"LOCKOUT_MAX_ATTEMPTS" default:"5"`
	LockoutWindowMinutes   int `envconfig:"LOCKOUT_WINDOW_MINUTES" default:"15"`
	LockoutDurationMinutes int `envconfig:"LOCKOUT_DURATION_MINUTES" default:"15"`
}

// Load reads environment variables into Config, applying defaults where necessary.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// MustLoad returns Config or exits the process.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.SessionBackend {
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown session backend %q", c.SessionBackend)
	}
	switch c.BindingBackend {
	case BackendRedis, BackendFile:
	default:
		return fmt.Errorf("unknown binding backend %q", c.BindingBackend)
	}
	if (c.SessionBackend == BackendRedis || c.BindingBackend == BackendRedis) && c.RedisAddr == "" {
		return errors.New("redis backend selected but REDIS_ADDR is empty")
	}
	if l := len(c.SessionBlockKey); l != 0 && l != 16 && l != 24 && l != 32 {
		return errors.New("SESSION_BLOCK_KEY must be 16, 24 or 32 bytes")
	}
	return nil
}

// LockoutWindow returns the failed-attempt counting window.
func (c *Config) LockoutWindow() time.Duration {
	return time.Duration(c.LockoutWindowMinutes) * time.Minute
}

// LockoutDuration returns how long a locked login stays locked.
func (c *Config) LockoutDuration() time.Duration {
	return time.Duration(c.LockoutDurationMinutes) * time.Minute
}
