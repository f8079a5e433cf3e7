// Package config provides configuration for the SnowGate server and client.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// ServerConfig holds license authority configuration loaded from
// environment variables.
type ServerConfig struct {
	Environment Environment
	Host        string
	Port        int

	DatabaseURL string

	// LicenseSecret keys both the license checksum and request signature
	// verification. It must match the secret the keygen tool signed with.
	LicenseSecret string

	// RedisURL, when set, backs the rate limiter with Redis so limits
	// hold across replicas. Empty means an in-memory limiter.
	RedisURL string
	// RateLimit is a limiter period string such as "120-M".
	RateLimit string

	LogLevel string
	// MetricsEnabled controls whether /metrics is served.
	MetricsEnabled bool

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// ClockSkew bounds how far a signed request timestamp may drift.
	ClockSkew time.Duration
}

// LoadServerConfig reads server configuration from environment variables.
func LoadServerConfig() (*ServerConfig, error) {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	cfg := &ServerConfig{
		Environment:     env,
		Host:            getEnv("SNOWGATE_HOST", "0.0.0.0"),
		Port:            getEnvInt("SNOWGATE_PORT", 8443),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		LicenseSecret:   os.Getenv("SNOWGATE_LICENSE_SECRET"),
		RedisURL:        os.Getenv("REDIS_URL"),
		RateLimit:       getEnv("SNOWGATE_RATE_LIMIT", "120-M"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		MetricsEnabled:  getEnvBool("SNOWGATE_METRICS", true),
		ReadTimeout:     getEnvDuration("SNOWGATE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SNOWGATE_WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout: getEnvDuration("SNOWGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		ClockSkew:       getEnvDuration("SNOWGATE_CLOCK_SKEW", 5*time.Minute),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.LicenseSecret == "" {
		return nil, errors.New("SNOWGATE_LICENSE_SECRET is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, errors.New("SNOWGATE_PORT must be a valid port number")
	}

	return cfg, nil
}

// getEnv reads a string from an environment variable, returning the default if unset.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvDuration reads a duration from an environment variable, returning the default if unset or invalid.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}
