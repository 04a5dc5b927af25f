// Copyright 2025 Signia Protocol
//
// Service Configuration
// Environment-driven configuration for the compiler service shell. The
// deterministic core takes no configuration from the environment; only the
// HTTP surface and the optional bundle store are configured here.
//
// SECURITY: Required variables have no defaults and must be explicitly set.
// Call Validate() after Load() to ensure all required configuration is
// present.

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the Signia compiler service.
type Config struct {
	// Server Configuration
	ListenAddr string

	// Database Configuration (optional content-addressed bundle store)
	DatabaseURL      string
	DatabaseRequired bool // If true, startup fails if database connection fails
	DBMaxOpenConns   int
	DBMaxIdleConns   int

	// Compilation Configuration
	PolicyFile string // Path to a YAML normalization-policy file (optional)

	// Service Configuration
	LogLevel     string
	StrictVerify bool // Verify received bundles in strict mode
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr: getEnv("SIGNIA_LISTEN_ADDR", ":8420"),

		DatabaseURL:      os.Getenv("SIGNIA_DATABASE_URL"),
		DatabaseRequired: getEnvBool("SIGNIA_DATABASE_REQUIRED", false),
		DBMaxOpenConns:   getEnvInt("SIGNIA_DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:   getEnvInt("SIGNIA_DB_MAX_IDLE_CONNS", 5),

		PolicyFile: os.Getenv("SIGNIA_POLICY_FILE"),

		LogLevel:     getEnv("SIGNIA_LOG_LEVEL", "info"),
		StrictVerify: getEnvBool("SIGNIA_STRICT_VERIFY", false),
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("SIGNIA_LISTEN_ADDR must not be empty")
	}
	if c.DatabaseRequired && c.DatabaseURL == "" {
		return fmt.Errorf("SIGNIA_DATABASE_URL is required when SIGNIA_DATABASE_REQUIRED is set")
	}
	if c.DBMaxOpenConns < 1 {
		return fmt.Errorf("SIGNIA_DB_MAX_OPEN_CONNS must be at least 1")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
