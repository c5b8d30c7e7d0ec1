package config

import "fmt"

// LoggerConfig configures logging.
type LoggerConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level,omitempty" json:"level,omitempty"`

	// Format selects the output format (simple, verbose).
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	// File is the log file path (empty = stderr).
	File string `yaml:"file,omitempty" json:"file,omitempty"`
}

// SetDefaults applies default values.
func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Validate checks the logger configuration.
func (c *LoggerConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Level)
	}
	return nil
}
