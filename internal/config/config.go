// Package config loads the server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/engrave-prep-mcp/internal/imaging"
	"github.com/ironsheep/engrave-prep-mcp/internal/pipeline"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the server configuration. Every field is optional in the file;
// missing fields keep the values from Default.
type Config struct {
	LogLevel string `yaml:"log_level"` // panic, fatal, error, warn, info, debug, trace

	// Debounce is the quiet period after a settings edit before the preview
	// is recomputed, e.g. "180ms".
	Debounce time.Duration `yaml:"debounce"`

	// ComputeTimeout bounds one preview computation. 0 disables the bound.
	ComputeTimeout time.Duration `yaml:"compute_timeout"`

	// MaxPixels rejects larger images. 0 disables the limit.
	MaxPixels int `yaml:"max_pixels"`

	Defaults pipeline.Settings      `yaml:"defaults"`
	Presets  imaging.Presets        `yaml:"presets"`
	Export   imaging.ExportSettings `yaml:"export"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		Debounce:  pipeline.DefaultDebounce,
		MaxPixels: 64 << 20,
		Defaults:  pipeline.DefaultSettings(),
		Presets:   imaging.DefaultPresets(),
		Export:    imaging.DefaultExportSettings(),
	}
}

// Load reads path over the defaults and validates the result. Presets in the
// file are added to the built-in ones, replacing any with the same name.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.Defaults = c.Defaults.Normalize()
	return c, nil
}

// Validate reports the first field that cannot be used. Settings values are
// not validated here; they are clamped like any other edit.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("%w: debounce must not be negative", ErrInvalid)
	}
	if c.ComputeTimeout < 0 {
		return fmt.Errorf("%w: compute_timeout must not be negative", ErrInvalid)
	}
	if c.MaxPixels < 0 {
		return fmt.Errorf("%w: max_pixels must not be negative", ErrInvalid)
	}
	if c.Export.DPI < 0 || c.Export.WidthInches < 0 || c.Export.HeightInches < 0 {
		return fmt.Errorf("%w: export size must not be negative", ErrInvalid)
	}
	return nil
}

// Level returns the parsed log level, or info if LogLevel is invalid.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// PipelineOptions builds orchestrator options from the configuration.
func (c *Config) PipelineOptions(log logrus.FieldLogger) pipeline.Options {
	return pipeline.Options{
		Debounce:       c.Debounce,
		ComputeTimeout: c.ComputeTimeout,
		MaxPixels:      c.MaxPixels,
		Defaults:       c.Defaults,
		Presets:        c.Presets,
		Logger:         log,
	}
}
