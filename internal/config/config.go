package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all saturn configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Reasoning engine
	Saturation SaturationConfig `yaml:"saturation"`

	// Taxonomy snapshots
	Store StoreConfig `yaml:"store"`

	// Ontology file watching
	Watch WatchConfig `yaml:"watch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the SQLite snapshot store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"` // empty disables snapshots
}

// WatchConfig configures the ontology watcher.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "saturn",
		Version: "0.1.0",

		Saturation: SaturationConfig{
			Workers:          0,
			Timeout:          "10m",
			ChainPolicy:      ChainPolicyDirect,
			ProgressInterval: "2s",
		},

		Store: StoreConfig{
			DatabasePath: "",
		},

		Watch: WatchConfig{
			Debounce: "300ms",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SATURN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Saturation.Workers = n
		}
	}
	if v := os.Getenv("SATURN_TIMEOUT"); v != "" {
		c.Saturation.Timeout = v
	}
	if v := os.Getenv("SATURN_CHAIN_POLICY"); v != "" {
		c.Saturation.ChainPolicy = v
	}

	// Database path from environment
	if path := os.Getenv("SATURN_DB"); path != "" {
		c.Store.DatabasePath = path
	}

	if level := os.Getenv("SATURN_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetTimeout returns the saturation timeout; zero means no timeout.
func (c *Config) GetTimeout() time.Duration {
	if c.Saturation.Timeout == "" || c.Saturation.Timeout == "0" {
		return 0
	}
	d, err := time.ParseDuration(c.Saturation.Timeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// GetProgressInterval returns how often progress is reported.
func (c *Config) GetProgressInterval() time.Duration {
	d, err := time.ParseDuration(c.Saturation.ProgressInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// GetDebounce returns the watcher debounce interval.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 300 * time.Millisecond
	}
	return d
}

// GetWorkers returns the worker pool size, defaulting to the CPU count.
func (c *Config) GetWorkers() int {
	if c.Saturation.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Saturation.Workers
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Saturation.Workers < 0 {
		return fmt.Errorf("saturation.workers must not be negative: %d", c.Saturation.Workers)
	}

	validPolicy := false
	for _, p := range ValidChainPolicies {
		if c.Saturation.ChainPolicy == p {
			validPolicy = true
			break
		}
	}
	if !validPolicy {
		return fmt.Errorf("invalid chain policy: %s (valid: %v)", c.Saturation.ChainPolicy, ValidChainPolicies)
	}

	if c.Saturation.Timeout != "" && c.Saturation.Timeout != "0" {
		if _, err := time.ParseDuration(c.Saturation.Timeout); err != nil {
			return fmt.Errorf("invalid saturation.timeout %q: %w", c.Saturation.Timeout, err)
		}
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid logging.format: %s (valid: console, json)", c.Logging.Format)
	}

	return nil
}
