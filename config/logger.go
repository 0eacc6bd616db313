package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log configures the logger.
type Log struct {
	// Level is the minimum enabled level (debug, info, warn, error). Defaults to info.
	Level string `yaml:"level"`

	// Development switches to human readable output with stack traces on warnings.
	Development bool `yaml:"development"`
}

// Validate validates the configuration.
func (c Log) Validate() error {
	if c.Level == "" {
		return nil
	}

	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	return nil
}

// NewLogger builds a logger from the configuration.
func NewLogger(c Log) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if c.Development {
		config = zap.NewDevelopmentConfig()
	}

	if c.Level != "" {
		level, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}

		config.Level = level
	}

	return config.Build()
}
