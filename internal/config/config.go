// Package config loads tablewise configuration from YAML with environment
// overrides. A missing config file is not an error; defaults apply.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tablewise configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Response cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Durable storage paths
	Store StoreConfig `yaml:"store"`

	// HTTP server
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the model client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, openai, mock
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Capacity    int    `yaml:"capacity"`
	MaxVariants int    `yaml:"max_variants"`
	Path        string `yaml:"path"` // empty disables persistence
	Seed        int64  `yaml:"seed"` // 0 means time-seeded
}

// StoreConfig configures the SQLite-backed stores.
type StoreConfig struct {
	InteractionLogPath string `yaml:"interaction_log_path"`
	AnalyticsPath      string `yaml:"analytics_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Timeout:  "60s",
		},
		Cache: CacheConfig{
			Capacity:    512,
			MaxVariants: 3,
			Path:        "data/cache.db",
		},
		Store: StoreConfig{
			InteractionLogPath: "data/interactions.db",
			AnalyticsPath:      "data/analytics.db",
		},
		Server: ServerConfig{
			Addr: ":8090",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
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
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "gemini"
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}
	if key := os.Getenv("TABLEWISE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("TABLEWISE_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if addr := os.Getenv("TABLEWISE_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if path := os.Getenv("TABLEWISE_CACHE_DB"); path != "" {
		c.Cache.Path = path
	}
	if path := os.Getenv("TABLEWISE_ANALYTICS_DB"); path != "" {
		c.Store.AnalyticsPath = path
	}
	if seed := os.Getenv("TABLEWISE_CACHE_SEED"); seed != "" {
		if n, err := strconv.ParseInt(seed, 10, 64); err == nil {
			c.Cache.Seed = n
		}
	}
}

// GetLLMTimeout returns the model call timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}
