package config

import (
	"os"
	"path/filepath"
)

// DefaultMatchCacheSize is the result cache capacity used when match.cache_size is unset.
const DefaultMatchCacheSize = 10000

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Match.CacheSize == 0 {
		cfg.Match.CacheSize = DefaultMatchCacheSize
	}
	if cfg.History.DatabasePath == "" {
		cfg.History.DatabasePath = defaultDatabasePath()
	}
}

func defaultDatabasePath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".titlenorm", "history.db")
	}
	return filepath.Join(".titlenorm", "history.db")
}
