// Package config provides environment-driven configuration for chronicled.
package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL   Secret
	Port          string
	ListenHost    string
	CORSOrigins   []string
	LogLevel      string
	APIKey        Secret
	EncryptionKey Secret

	// Audit queue processing.
	AuditWorkers      int
	MaxRetries        int
	BaseRetryDelay    time.Duration
	MaxRetryDelay     time.Duration
	StaleClaimTimeout time.Duration
	QueuePollInterval time.Duration

	// Retention.
	SnapshotRetention time.Duration
	QueueRetention    time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:   Secret(envOrDefault("DATABASE_URL", "")),
		Port:          envOrDefault("PORT", "3040"),
		ListenHost:    envOrDefault("LISTEN_HOST", "127.0.0.1"),
		LogLevel:      envOrDefault("LOG_LEVEL", "info"),
		APIKey:        Secret(envOrDefault("API_KEY", "")),
		EncryptionKey: Secret(envOrDefault("ENCRYPTION_KEY", "")),
	}

	var err error
	if cfg.AuditWorkers, err = envInt("AUDIT_WORKERS", 2, 1, 16); err != nil {
		return nil, err
	}

	if cfg.MaxRetries, err = envInt("MAX_RETRIES", 5, 0, 100); err != nil {
		return nil, err
	}

	if cfg.BaseRetryDelay, err = envDuration("BASE_RETRY_DELAY", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.MaxRetryDelay, err = envDuration("MAX_RETRY_DELAY", time.Hour); err != nil {
		return nil, err
	}

	if cfg.StaleClaimTimeout, err = envDuration("STALE_CLAIM_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}

	if cfg.QueuePollInterval, err = envDuration("QUEUE_POLL_INTERVAL", time.Second); err != nil {
		return nil, err
	}

	retentionDays, err := envInt("SNAPSHOT_RETENTION_DAYS", 30, 1, 3650)
	if err != nil {
		return nil, err
	}
	cfg.SnapshotRetention = time.Duration(retentionDays) * 24 * time.Hour

	queueRetentionDays, err := envInt("QUEUE_RETENTION_DAYS", 7, 1, 365)
	if err != nil {
		return nil, err
	}
	cfg.QueueRetention = time.Duration(queueRetentionDays) * 24 * time.Hour

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3002")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

func (c *Config) validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateNetwork(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	if err := c.validateSecrets(); err != nil {
		return err
	}

	return c.validateQueue()
}

func (c *Config) validateDatabase() error {
	if c.DatabaseURL.Value() == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	dbURL, err := url.Parse(c.DatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	if dbURL.Scheme != "postgres" && dbURL.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL scheme must be postgres:// or postgresql://")
	}

	if dbURL.Hostname() == "" {
		return fmt.Errorf("DATABASE_URL must include a host")
	}

	dbHost := dbURL.Hostname()
	if dbHost != "localhost" && dbHost != "127.0.0.1" && dbHost != "::1" {
		sslmode := dbURL.Query().Get("sslmode")
		if sslmode == "disable" {
			return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", dbHost)
		}
	}

	return nil
}

func (c *Config) validateNetwork() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid integer: %w", err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcard '*'")
		}
		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain glob characters (*?[]), got %q", origin)
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func (c *Config) validateSecrets() error {
	if c.APIKey.Value() == "" {
		return fmt.Errorf("API_KEY is required")
	}

	if len(c.APIKey.Value()) < 16 {
		return fmt.Errorf("API_KEY must be at least 16 characters")
	}

	if c.EncryptionKey.Value() == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}

	keyBytes, err := hex.DecodeString(c.EncryptionKey.Value())
	if err != nil {
		return fmt.Errorf("ENCRYPTION_KEY must be valid hex: %w", err)
	}

	if len(keyBytes) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (32 bytes), got %d chars", len(c.EncryptionKey.Value()))
	}

	return nil
}

func (c *Config) validateQueue() error {
	if c.BaseRetryDelay <= 0 {
		return fmt.Errorf("BASE_RETRY_DELAY must be positive")
	}

	if c.MaxRetryDelay < c.BaseRetryDelay {
		return fmt.Errorf("MAX_RETRY_DELAY must be >= BASE_RETRY_DELAY")
	}

	if c.StaleClaimTimeout < time.Second {
		return fmt.Errorf("STALE_CLAIM_TIMEOUT must be at least 1s")
	}

	if c.QueuePollInterval < 10*time.Millisecond {
		return fmt.Errorf("QUEUE_POLL_INTERVAL must be at least 10ms")
	}

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback, minVal, maxVal int) (int, error) {
	v, err := strconv.Atoi(envOrDefault(key, strconv.Itoa(fallback)))
	if err != nil || v < minVal || v > maxVal {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, minVal, maxVal)
	}

	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 30s, 5m): %w", key, err)
	}

	return d, nil
}
