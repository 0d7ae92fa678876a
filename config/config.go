// Package config provides configuration loading and management for the
// nutrition engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Cache   CacheConfig   `yaml:"cache"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Storage StorageConfig `yaml:"storage"`
}

// ModelConfig configures the generative model settings
type ModelConfig struct {
	// Provider is the registered provider name ("gemini", "openai")
	Provider string `yaml:"provider"`
	// Name is the provider-specific model identifier
	Name string `yaml:"name"`
	// Endpoint is the base API URL (empty = provider default)
	Endpoint string `yaml:"endpoint"`
	// Temperature controls randomness (0.0-1.0, default: 0.2)
	Temperature float64 `yaml:"temperature"`
	// Timeout is the maximum time to wait for model responses
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig configures the in-memory result cache
type CacheConfig struct {
	// TTL is the reuse window for analysis results within a session
	TTL time.Duration `yaml:"ttl"`
}

// LedgerConfig configures ingredient ledger persistence
type LedgerConfig struct {
	// DebounceDelay is the quiet period after the last edit before
	// ingredient changes persist
	DebounceDelay time.Duration `yaml:"debounce_delay"`
}

// StorageConfig configures the local persistence layer
type StorageConfig struct {
	// Path is the SQLite database file path
	Path string `yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    "gemini",
			Name:        "gemini-2.0-flash",
			Endpoint:    "",
			Temperature: 0.2,
			Timeout:     3 * time.Minute,
		},
		Cache: CacheConfig{
			TTL: 60 * time.Second,
		},
		Ledger: LedgerConfig{
			DebounceDelay: 400 * time.Millisecond,
		},
		Storage: StorageConfig{
			Path: "nutriengine.db",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Model.Provider == "" {
		return fmt.Errorf("model.provider is required")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if c.Ledger.DebounceDelay < 0 {
		return fmt.Errorf("ledger.debounce_delay must not be negative")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Model
	if other.Model.Provider != "" {
		c.Model.Provider = other.Model.Provider
	}
	if other.Model.Name != "" {
		c.Model.Name = other.Model.Name
	}
	if other.Model.Endpoint != "" {
		c.Model.Endpoint = other.Model.Endpoint
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}

	// Cache
	if other.Cache.TTL != 0 {
		c.Cache.TTL = other.Cache.TTL
	}

	// Ledger
	if other.Ledger.DebounceDelay != 0 {
		c.Ledger.DebounceDelay = other.Ledger.DebounceDelay
	}

	// Storage
	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}
}
