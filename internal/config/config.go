// Package config handles taskvault configuration loading and
// validation. Load order (later sources override earlier): built-in
// defaults, user config (~/.taskvault/config.yaml), project config
// (.taskvault/config.yaml), then TASKVAULT_* environment variables.
package config

import (
	"fmt"
	"time"

	vaulterrors "github.com/taskvault/taskvault/internal/errors"
)

// TaskvaultDir is the project-local configuration directory.
const TaskvaultDir = ".taskvault"

// ConfigFileName is the config file name inside TaskvaultDir.
const ConfigFileName = "config.yaml"

// Config is the complete taskvault configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Client   ClientConfig   `yaml:"client"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the daemon.
type ServerConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	StatsTTL time.Duration `yaml:"stats_ttl"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects and configures the authoritative store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// Path is the database file. Empty means ~/.taskvault/vault.db.
	Path string `yaml:"path"`
}

// PostgresConfig configures the PostgreSQL store.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN builds a keyword/value connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// ClientConfig configures the CLI's connection to the daemon.
type ClientConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig configures the local fast tier.
type CacheConfig struct {
	// Dir is the cache directory. Empty means ~/.taskvault/cache.
	Dir string `yaml:"dir"`
	// Disabled turns off local mirroring entirely.
	Disabled bool `yaml:"disabled"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "localhost",
			Port:     8080,
			StatsTTL: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				User:    "taskvault",
				SSLMode: "disable",
			},
		},
		Client: ClientConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return vaulterrors.ErrConfigInvalid("database.driver",
			fmt.Sprintf("unknown driver %q (valid: sqlite, postgres)", c.Database.Driver))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return vaulterrors.ErrConfigInvalid("server.port",
			fmt.Sprintf("port %d out of range", c.Server.Port))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return vaulterrors.ErrConfigInvalid("log.level",
			fmt.Sprintf("unknown level %q (valid: debug, info, warn, error)", c.Log.Level))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return vaulterrors.ErrConfigInvalid("log.format",
			fmt.Sprintf("unknown format %q (valid: text, json)", c.Log.Format))
	}

	if c.Client.BaseURL == "" {
		return vaulterrors.ErrConfigInvalid("client.base_url", "base URL must not be empty")
	}

	return nil
}
