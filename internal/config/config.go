// Package config loads the process settings and the ingestion workflow document.
//
// Process settings come from flags and environment variables through viper.
// Every key can be set with an INGEST_ prefixed variable:
//
//   - INGEST_CONFIG: workflow file path (default: ./workflow.yaml)
//   - INGEST_LOG_LEVEL: overrides workflowConfig.loggerLevel
//   - INGEST_LOG_FILE: also write JSON logs to this file
//   - INGEST_STATE_STORE: overrides workflowConfig.stateStore.path
//   - INGEST_HTTP_TIMEOUT: timeout of a single HTTP call (default: 30s)
//   - INGEST_RATE_LIMIT_ENABLED: throttle vendor calls (default: true)
//   - INGEST_RATE_LIMIT_RPS: vendor requests per second (default: 5)
//   - INGEST_CIRCUIT_BREAKER_ENABLED: guard vendor and registry calls (default: true)
//
// The workflow document is YAML. ${VAR} references are expanded from the
// environment before parsing.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Viper keys
const (
	KeyConfig                = "config"
	KeyLogLevel              = "log-level"
	KeyLogFile               = "log-file"
	KeyStateStore            = "state-store"
	KeyHTTPTimeout           = "http-timeout"
	KeyRateLimitEnabled      = "rate-limit-enabled"
	KeyRateLimitRPS          = "rate-limit-rps"
	KeyCircuitBreakerEnabled = "circuit-breaker-enabled"
)

// Config holds the process settings of one ingest invocation
type Config struct {
	WorkflowPath          string        // Path to the workflow YAML file
	LogLevel              string        // Empty means use the workflow's loggerLevel
	LogFile               string        // Optional JSON log file
	StateStorePath        string        // Empty means use the workflow's stateStore
	HTTPTimeout           time.Duration // Timeout of a single HTTP call
	RateLimitEnabled      bool          // Whether vendor calls are throttled
	RateLimitRPS          float64       // Vendor requests per second
	CircuitBreakerEnabled bool          // Whether HTTP calls go through a circuit breaker
}

// NewViper returns a viper instance with the INGEST_ environment binding and defaults
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyConfig, "./workflow.yaml")
	v.SetDefault(KeyLogLevel, "")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyStateStore, "")
	v.SetDefault(KeyHTTPTimeout, "30s")
	v.SetDefault(KeyRateLimitEnabled, true)
	v.SetDefault(KeyRateLimitRPS, 5.0)
	v.SetDefault(KeyCircuitBreakerEnabled, true)

	return v
}

// Load reads the process settings from the environment
func Load() *Config {
	return LoadFrom(NewViper())
}

// LoadFrom reads the process settings from v
func LoadFrom(v *viper.Viper) *Config {
	return &Config{
		WorkflowPath:          v.GetString(KeyConfig),
		LogLevel:              v.GetString(KeyLogLevel),
		LogFile:               v.GetString(KeyLogFile),
		StateStorePath:        v.GetString(KeyStateStore),
		HTTPTimeout:           v.GetDuration(KeyHTTPTimeout),
		RateLimitEnabled:      v.GetBool(KeyRateLimitEnabled),
		RateLimitRPS:          v.GetFloat64(KeyRateLimitRPS),
		CircuitBreakerEnabled: v.GetBool(KeyCircuitBreakerEnabled),
	}
}

// Validate checks the process settings
func (c *Config) Validate() error {
	if strings.TrimSpace(c.WorkflowPath) == "" {
		return fmt.Errorf("workflow config path is required")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive, got %v", c.HTTPTimeout)
	}

	if c.RateLimitEnabled && c.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit must be positive when enabled, got %v", c.RateLimitRPS)
	}

	if c.LogLevel != "" {
		switch strings.ToLower(c.LogLevel) {
		case "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("log level must be one of debug, info, warn, error")
		}
	}

	return nil
}
