// Package config provides configuration management for the integration runner.
// Process settings come from environment variables with sensible defaults; the
// integration itself (endpoints, rules, supervised processes) is a YAML document
// loaded by LoadIntegration.
//
// Environment Variables:
//
//   - INTEGRATION_CONFIG: Integration document path (default: ./integration.yaml)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path (default: stderr)
//   - HTTP_TIMEOUT: Per-request timeout (default: 30s)
//   - FETCH_CONCURRENCY: Endpoints fetched from in parallel (default: 4)
//   - OUTPUT_FORMAT: Report format, "text" or "json" (default: text)
//   - SHUTDOWN_GRACE: Time supervised processes get to exit (default: 5s)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
//	integration, err := config.LoadIntegration(cfg.IntegrationFile)
package config

import (
	"os"
	"strconv"
	"time"

	"api-integrator/internal/common/errors"
	"api-integrator/internal/common/validation"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds process settings. Numeric and duration fields keep their raw
// environment value; Validate parses them and the accessors return the result.
type Config struct {
	IntegrationFile  string // Integration document path
	LogLevel         string // Logging level (debug, info, warn, error)
	LogFile          string // Log file, stderr when empty
	HTTPTimeout      string // Per-request timeout (e.g., "30s")
	FetchConcurrency string // Endpoints fetched from in parallel
	OutputFormat     string // Report format (text, json)
	ShutdownGrace    string // Grace period before supervised processes are killed
}

// Load creates a Config from environment variables. It does not validate.
func Load() *Config {
	return &Config{
		IntegrationFile:  getEnv("INTEGRATION_CONFIG", "./integration.yaml"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFile:          getEnv("LOG_FILE", ""),
		HTTPTimeout:      getEnv("HTTP_TIMEOUT", "30s"),
		FetchConcurrency: getEnv("FETCH_CONCURRENCY", "4"),
		OutputFormat:     getEnv("OUTPUT_FORMAT", FormatText),
		ShutdownGrace:    getEnv("SHUTDOWN_GRACE", "5s"),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Validate checks every setting and reports all problems as one configuration error
func (c *Config) Validate() error {
	v := validation.NewValidator()

	v.Required(c.IntegrationFile, "INTEGRATION_CONFIG")
	v.OneOf(c.LogLevel, []string{"debug", "info", "warn", "warning", "error"}, "LOG_LEVEL")
	v.OneOf(c.OutputFormat, []string{FormatText, FormatJSON}, "OUTPUT_FORMAT")
	v.Duration(c.HTTPTimeout, "HTTP_TIMEOUT")
	v.Duration(c.ShutdownGrace, "SHUTDOWN_GRACE")
	v.PositiveInt(c.FetchConcurrency, "FETCH_CONCURRENCY")

	if err := v.Error(); err != nil {
		return errors.ConfigError(err.Error())
	}
	return nil
}

// Timeout returns HTTP_TIMEOUT, or 30s when it does not parse
func (c *Config) Timeout() time.Duration {
	return parseDuration(c.HTTPTimeout, 30*time.Second)
}

// Grace returns SHUTDOWN_GRACE, or 5s when it does not parse
func (c *Config) Grace() time.Duration {
	return parseDuration(c.ShutdownGrace, 5*time.Second)
}

// Concurrency returns FETCH_CONCURRENCY, or 4 when it does not parse
func (c *Config) Concurrency() int {
	if n, err := strconv.Atoi(c.FetchConcurrency); err == nil && n > 0 {
		return n
	}
	return 4
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return fallback
}
