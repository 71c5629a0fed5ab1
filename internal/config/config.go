// Package config loads the daemon's YAML configuration: data directory,
// identity key location, database path and logging level.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// IdentityConfig configures the node's long-term keypair.
type IdentityConfig struct {
	// KeyFile is relative to DataDir unless it is an absolute path.
	KeyFile string `yaml:"key_file"`
}

// DatabaseConfig configures the feed store's database file.
type DatabaseConfig struct {
	// Path is the SQLite database file. Empty defaults to
	// <data_dir>/feeds/solar.db.
	Path string `yaml:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Config is the daemon's top-level configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Identity IdentityConfig `yaml:"identity"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DataDir: "~/.solar",
		Identity: IdentityConfig{
			KeyFile: "identity.key",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads YAML configuration from path and fills in defaults for
// anything unset. If path does not exist, a Config with defaults alone
// is returned rather than an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.Identity.KeyFile == "" {
		cfg.Identity.KeyFile = "identity.key"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}

// DataDirPath expands a leading "~" in DataDir to the user's home
// directory.
func (c *Config) DataDirPath() string {
	return expandPath(c.DataDir)
}

// IdentityKeyPath returns the absolute path to the identity key file.
func (c *Config) IdentityKeyPath() string {
	if filepath.IsAbs(c.Identity.KeyFile) {
		return c.Identity.KeyFile
	}
	return filepath.Join(c.DataDirPath(), c.Identity.KeyFile)
}

// DatabasePath returns the absolute path to the feed store database,
// defaulting to <data_dir>/feeds/solar.db when unset.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		if filepath.IsAbs(c.Database.Path) {
			return c.Database.Path
		}
		return filepath.Join(c.DataDirPath(), c.Database.Path)
	}
	return filepath.Join(c.DataDirPath(), "feeds", "solar.db")
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
