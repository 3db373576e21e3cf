package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Defaults used when neither flag nor config file sets a value.
const (
	DefaultEndpoint = "http://localhost:8080/api/agent"
	DefaultDBPath   = "contrachat.db"
	DefaultLogDir   = "logs"
	DefaultCacheDir = ".contrachat"
)

// Config holds application configuration
type Config struct {
	Endpoint       string `toml:"endpoint"`        // Counterargument agent URL
	DBPath         string `toml:"db_path"`         // SQLite database path
	LogDir         string `toml:"log_dir"`         // Log and telemetry output directory
	CacheDir       string `toml:"cache_dir"`       // Active-conversation cache directory
	ConversationID string `toml:"-"`               // Resume a known conversation id
	InitialMessage string `toml:"-"`               // Belief to send on startup
	Resume         bool   `toml:"resume"`          // Restore the active-conversation snapshot
	Debug          bool   `toml:"debug"`
}

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		Endpoint: DefaultEndpoint,
		DBPath:   DefaultDBPath,
		LogDir:   DefaultLogDir,
		CacheDir: DefaultCacheDir,
	}
}

// LoadFile overlays values from a TOML config file onto cfg. A missing
// file is not an error; a malformed one is.
func LoadFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
