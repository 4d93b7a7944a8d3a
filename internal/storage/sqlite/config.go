package sqlite

import (
	"metadata-ingestion/internal/common/errors"
)

type Config struct {
	DatabasePath string
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.ConfigError("database path is required")
	}
	return nil
}

func (c *Config) GetType() string {
	return "sqlite"
}

func DefaultConfig() *Config {
	return &Config{
		DatabasePath: "./ingestion.db",
	}
}
