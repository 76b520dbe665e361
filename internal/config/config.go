// Package config provides configuration loading and structs for the titlenorm service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Catalog CatalogConfig `yaml:"catalog"`
	Index   IndexConfig   `yaml:"index"`
	Match   MatchConfig   `yaml:"match"`
	History HistoryConfig `yaml:"history"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CatalogConfig locates the canonical title catalog. An empty path selects the catalog
// bundled with the binary.
type CatalogConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// IndexConfig holds TF-IDF index settings. An empty cache path selects the default file in
// the temp directory; workers <= 0 means one per CPU.
type IndexConfig struct {
	CachePath      string `yaml:"cache_path"`
	Workers        int    `yaml:"workers"`
	FoldDiacritics bool   `yaml:"fold_diacritics"`
}

// MatchConfig holds matching settings. A negative cache size disables the result cache.
type MatchConfig struct {
	Workers   int `yaml:"workers"`
	CacheSize int `yaml:"cache_size"`
}

// HistoryConfig holds the match history database settings.
type HistoryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses the config file at path, applies defaults and environment
// overrides, and expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	configDir := filepath.Dir(path)
	cfg.Catalog.Path = expandPath(cfg.Catalog.Path, configDir)
	cfg.Index.CachePath = expandPath(cfg.Index.CachePath, configDir)
	cfg.History.DatabasePath = expandPath(cfg.History.DatabasePath, configDir)

	return &cfg, nil
}

// Default returns the configuration used when no config file exists: defaults plus
// environment overrides, with relative paths taken from the working directory.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	cfg.Catalog.Path = absPath(cfg.Catalog.Path)
	cfg.Index.CachePath = absPath(cfg.Index.CachePath)
	cfg.History.DatabasePath = absPath(cfg.History.DatabasePath)
	return &cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides reads TITLENORM_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TITLENORM_CATALOG"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("TITLENORM_INDEX_PATH"); v != "" {
		cfg.Index.CachePath = v
	}
	if v := os.Getenv("TITLENORM_DB_PATH"); v != "" {
		cfg.History.DatabasePath = v
	}
	if v := os.Getenv("TITLENORM_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TITLENORM_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = debug
		}
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

func absPath(path string) string {
	if path == "" {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
