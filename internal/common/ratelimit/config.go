package ratelimit

import (
	"fmt"
)

// Config represents rate limiter configuration
type Config struct {
	Enabled           bool    `json:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	BurstSize         int     `json:"burstSize" yaml:"burstSize"`
}

// DefaultConfig returns a conservative limit suitable for vendor REST APIs
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RequestsPerSecond: 5,
		BurstSize:         5,
	}
}

// Validate fills defaults and checks the rate limiter configuration
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requestsPerSecond must not be negative, got %v", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 10
	}

	if c.BurstSize < 0 {
		return fmt.Errorf("burstSize must not be negative, got %d", c.BurstSize)
	}
	if c.BurstSize == 0 {
		c.BurstSize = int(c.RequestsPerSecond)
		if c.BurstSize < 1 {
			c.BurstSize = 1
		}
	}

	return nil
}
