// Package config provides YAML configuration loading and validation for the
// StreamForge sidecar. The repository and store hold everything else that
// can be mutated at runtime; this file covers only the handful of settings
// needed before the Config Repository can be opened.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level sidecar configuration structure.
type Config struct {
	// PreferredPort is the loopback port the Lifecycle component tries to
	// bind first. Defaults to 39283 when omitted.
	PreferredPort int `yaml:"preferred_port"`

	// PortRangeMin and PortRangeMax bound the fallback scan performed when
	// PreferredPort is unavailable. Default to 39283..39383.
	PortRangeMin int `yaml:"port_range_min"`
	PortRangeMax int `yaml:"port_range_max"`

	// DataDir overrides the OS-discovered per-user application-data
	// directory. Empty means "let Store discover it".
	DataDir string `yaml:"data_dir"`

	// LogLevel sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`
}

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// defaultPreferredPort is the sidecar's well-known first-choice port.
const (
	defaultPreferredPort = 39283
	defaultPortRangeMin  = 39283
	defaultPortRangeMax  = 39383
)

// LoadConfig reads the YAML file at path, unmarshals it into Config, applies
// defaults, and validates all required fields. It returns a typed error
// describing every validation failure encountered, joined with errors.Join.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed for %q: %w", path, err)
	}

	return &cfg, nil
}

// Default returns a Config populated entirely from defaults, used when no
// config file is present on disk.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in zero-value optional fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.PreferredPort == 0 {
		cfg.PreferredPort = defaultPreferredPort
	}
	if cfg.PortRangeMin == 0 {
		cfg.PortRangeMin = defaultPortRangeMin
	}
	if cfg.PortRangeMax == 0 {
		cfg.PortRangeMax = defaultPortRangeMax
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// validate checks that enumerated fields contain only valid values and that
// the port range is internally consistent.
func validate(cfg *Config) error {
	var errs []error

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q must be one of: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.PreferredPort < 0 || cfg.PreferredPort > 65535 {
		errs = append(errs, fmt.Errorf("preferred_port %d out of range", cfg.PreferredPort))
	}
	if cfg.PortRangeMin > cfg.PortRangeMax {
		errs = append(errs, fmt.Errorf("port_range_min (%d) must be <= port_range_max (%d)", cfg.PortRangeMin, cfg.PortRangeMax))
	}

	return errors.Join(errs...)
}
