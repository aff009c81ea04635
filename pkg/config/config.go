// Package config holds the CLI-wide settings shared by every
// cmd/concurrencylab subcommand: log level, output format, and the
// default timing knobs for the stress harnesses in internal/distvec and
// internal/ringpass.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared across the concurrencylab CLI.
type Config struct {
	LogLevel     string `yaml:"log_level" default:"info"`
	OutputFormat string `yaml:"output_format" default:"table"` // table, json

	// StressTimeout bounds how long a distance-vector stress run waits for
	// convergence before declaring the run hung.
	StressTimeout time.Duration `yaml:"-"`
	// RingPassDuration is how long a ring-pass benchmark keeps forwarding
	// tokens before the measurement window closes.
	RingPassDuration time.Duration `yaml:"-"`
}

// configYAML mirrors Config for on-disk representation: durations are
// written and read as strings ("45s") the way time.ParseDuration expects,
// since YAML has no native duration type.
type configYAML struct {
	LogLevel         string `yaml:"log_level"`
	OutputFormat     string `yaml:"output_format"`
	StressTimeout    string `yaml:"stress_timeout"`
	RingPassDuration string `yaml:"ring_pass_duration"`
}

// UnmarshalYAML parses the string-duration representation above into cfg's
// time.Duration fields, leaving any field the document omits untouched.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw configYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.LogLevel != "" {
		c.LogLevel = raw.LogLevel
	}
	if raw.OutputFormat != "" {
		c.OutputFormat = raw.OutputFormat
	}
	if raw.StressTimeout != "" {
		d, err := time.ParseDuration(raw.StressTimeout)
		if err != nil {
			return fmt.Errorf("stress_timeout: %w", err)
		}
		c.StressTimeout = d
	}
	if raw.RingPassDuration != "" {
		d, err := time.ParseDuration(raw.RingPassDuration)
		if err != nil {
			return fmt.Errorf("ring_pass_duration: %w", err)
		}
		c.RingPassDuration = d
	}
	return nil
}

// DefaultConfig returns a Config populated with the struct tag defaults,
// plus the duration knobs the go-defaults tag format can't express.
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	cfg.StressTimeout = 30 * time.Second
	cfg.RingPassDuration = 5 * time.Second
	return cfg
}

// LoadFile reads a YAML config file, overlaying it on DefaultConfig's
// values for any field the file leaves unset.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings no subcommand could act on.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case "", "table", "json":
	default:
		return fmt.Errorf("unknown output_format %q (want table or json)", c.OutputFormat)
	}
	if c.StressTimeout < 0 {
		return fmt.Errorf("stress_timeout must not be negative")
	}
	if c.RingPassDuration < 0 {
		return fmt.Errorf("ring_pass_duration must not be negative")
	}
	return nil
}

// Level parses LogLevel into a logrus.Level, defaulting to InfoLevel on an
// unrecognized or empty string.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// NewLogger creates a logger configured from this Config.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}
