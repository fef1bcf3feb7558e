// Package config loads regsync configuration from a YAML file and
// REGSYNC_-prefixed environment variables via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ChainConfig names one chain to sync and optionally pins its registry
// endpoint.
type ChainConfig struct {
	Name     string `mapstructure:"name"`
	Endpoint string `mapstructure:"endpoint"`
}

// CheckpointConfig selects the checkpoint backend.
type CheckpointConfig struct {
	// Backend is "file", "sqlite" or "memory".
	Backend string `mapstructure:"backend"`
	// Path is the state file or database path.
	Path string `mapstructure:"path"`
}

// RegistryConfig configures the ledger query service.
type RegistryConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// IndexConfig configures the vector indexing service.
type IndexConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// DaemonConfig configures continuous mode.
type DaemonConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig configures optional file logging with rotation.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Config is the full regsync configuration.
type Config struct {
	// DefaultChain is the ambient chain used when no chains are listed.
	DefaultChain string `mapstructure:"default_chain"`

	// DefaultEndpoint is the ambient chain's registry endpoint shortcut.
	DefaultEndpoint string `mapstructure:"default_endpoint"`

	// Chains lists the chains to sync.
	Chains []ChainConfig `mapstructure:"chains"`

	// EndpointOverrides maps chain name to registry endpoint.
	EndpointOverrides map[string]string `mapstructure:"endpoint_overrides"`

	BatchSize      int  `mapstructure:"batch_size"`
	IncludeOrphans bool `mapstructure:"include_orphans"`

	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Index      IndexConfig      `mapstructure:"index"`
	Daemon     DaemonConfig     `mapstructure:"daemon"`
	Log        LogConfig        `mapstructure:"log"`
}

// Load reads configuration from the given file path. An empty path searches
// for regsync.yaml in the working directory. A missing file yields the
// defaults; a malformed one is an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("batch_size", 100)
	v.SetDefault("include_orphans", true)
	v.SetDefault("checkpoint.backend", "file")
	v.SetDefault("checkpoint.path", ".regsync/checkpoint.json")
	v.SetDefault("registry.timeout", 30*time.Second)
	v.SetDefault("daemon.interval", time.Minute)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetEnvPrefix("REGSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("regsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Checkpoint.Backend {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown checkpoint backend %q (want file, sqlite or memory)", c.Checkpoint.Backend)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size cannot be negative")
	}
	for _, chain := range c.Chains {
		if chain.Name == "" {
			return fmt.Errorf("chain entry with empty name")
		}
	}
	return nil
}
