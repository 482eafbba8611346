// Package config loads application configuration from a YAML file,
// environment variables, and built-in defaults, in that order of
// increasing precedence for the overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppConfig holds all application configuration. It is built once by
// Load and handed to the components that need it.
type AppConfig struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Server   ServerConfig   `mapstructure:"server"`
}

// DatabaseConfig locates the local event log.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

// RemoteConfig holds the remote store connection for sync.
type RemoteConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// SyncConfig tunes the background sync loop.
type SyncConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Subscribe bool          `mapstructure:"subscribe"`
}

// ServerConfig configures the `grove serve` reference remote store.
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	JWTSecret string `mapstructure:"jwt_secret"`
	// PostgresDSN selects the Postgres row store; empty runs in-memory.
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// Load reads configuration from configPath if given, otherwise from the
// standard search locations, with GROVE_* environment variables taking
// precedence over the file.
func Load(configPath string) (*AppConfig, error) {
	cfg := defaultConfig()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.grove")
		v.AddConfigPath("/etc/grove/")
	}

	v.SetEnvPrefix("GROVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; defaults and env cover it.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.StringToTimeDurationHookFunc(),
	)); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Database.Path = expandPath(cfg.Database.Path)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// defaultConfig returns the built-in defaults. Kept as a typed struct
// rather than viper.SetDefault calls.
func defaultConfig() AppConfig {
	return AppConfig{
		Database: DatabaseConfig{
			Path: "~/.grove/grove.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Sync: SyncConfig{
			Interval:  5 * time.Minute,
			Subscribe: true,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8477",
		},
	}
}

func (c *AppConfig) validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log format must be console or json, got: %s", c.Log.Format)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

// expandPath expands a leading ~ and environment variables.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return os.ExpandEnv(path)
}
