// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Store       StoreConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	Auth        AuthConfig
	Log         LogConfig
	CatalogPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// StoreConfig selects the document store implementation.
type StoreConfig struct {
	Driver string // "memory" or "postgres"
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings.
type CacheConfig struct {
	Enabled bool
	URL     string
	TTL     time.Duration
}

// AuthConfig holds bearer token verification settings.
// Tokens are issued by the external identity provider.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LEARN_SERVER_PORT", 8080),
			Host: envStr("LEARN_SERVER_HOST", "0.0.0.0"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(envStr("LEARN_STORE_DRIVER", StoreMemory)),
		},
		Database: DatabaseConfig{
			URL:      envStr("LEARN_DATABASE_URL", ""),
			MaxConns: envInt("LEARN_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("LEARN_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			Enabled: envBool("LEARN_CACHE_ENABLED", false),
			URL:     envStr("LEARN_CACHE_URL", "redis://localhost:6379"),
			TTL:     envDuration("LEARN_CACHE_TTL", 10*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: envStr("LEARN_AUTH_JWT_SECRET", "change-me-in-production"),
			Issuer:    envStr("LEARN_AUTH_ISSUER", ""),
		},
		Log: LogConfig{
			Level:  envStr("LEARN_LOG_LEVEL", "info"),
			Format: envStr("LEARN_LOG_FORMAT", "json"),
		},
		CatalogPath: envStr("LEARN_CATALOG_PATH", ""),
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("LEARN_DATABASE_URL is required when LEARN_STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("LEARN_STORE_DRIVER must be 'memory' or 'postgres', got %q", c.Store.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("LEARN_AUTH_JWT_SECRET is required")
	}

	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("LEARN_CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}

	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
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
