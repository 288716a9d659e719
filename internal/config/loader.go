package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the effective configuration: defaults, then user and
// project config files, then environment overrides. Missing files are
// fine; a malformed project config is fatal.
func Load() (*Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, TaskvaultDir, ConfigFileName)
		if _, err := os.Stat(userPath); err == nil {
			if err := mergeFromFile(cfg, userPath); err != nil {
				slog.Warn("failed to load user config", "path", userPath, "error", err)
			}
		}
	}

	projectPath := filepath.Join(TaskvaultDir, ConfigFileName)
	if _, err := os.Stat(projectPath); err == nil {
		if err := mergeFromFile(cfg, projectPath); err != nil {
			return nil, err
		}
	}

	ApplyEnvVars(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile builds the configuration from one explicit file plus
// environment overrides, skipping the search path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := mergeFromFile(cfg, path); err != nil {
		return nil, err
	}
	ApplyEnvVars(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	// Unmarshal over the existing values so absent keys keep their
	// current (default or user-level) settings.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// EnvVarMapping maps environment variables to the config fields they
// override. Listed here so `taskvault config env` can print them.
var EnvVarMapping = map[string]string{
	"TASKVAULT_HOST":        "server.host",
	"TASKVAULT_PORT":        "server.port",
	"TASKVAULT_DB_DRIVER":   "database.driver",
	"TASKVAULT_DB_PATH":     "database.sqlite.path",
	"TASKVAULT_DB_HOST":     "database.postgres.host",
	"TASKVAULT_DB_PORT":     "database.postgres.port",
	"TASKVAULT_DB_USER":     "database.postgres.user",
	"TASKVAULT_DB_PASSWORD": "database.postgres.password",
	"TASKVAULT_DB_NAME":     "database.postgres.database",
	"TASKVAULT_DB_SSL_MODE": "database.postgres.ssl_mode",
	"TASKVAULT_SERVER_URL":  "client.base_url",
	"TASKVAULT_TIMEOUT":     "client.timeout",
	"TASKVAULT_CACHE_DIR":   "cache.dir",
	"TASKVAULT_LOG_LEVEL":   "log.level",
	"TASKVAULT_LOG_FORMAT":  "log.format",
}

// ApplyEnvVars applies TASKVAULT_* overrides to cfg and returns the
// config paths that were overridden.
func ApplyEnvVars(cfg *Config) []string {
	var overridden []string

	set := func(envVar string, apply func(string) bool) {
		value := os.Getenv(envVar)
		if value == "" {
			return
		}
		if apply(value) {
			overridden = append(overridden, EnvVarMapping[envVar])
		}
	}

	set("TASKVAULT_HOST", func(v string) bool {
		cfg.Server.Host = v
		return true
	})
	set("TASKVAULT_PORT", func(v string) bool {
		port, err := strconv.Atoi(v)
		if err != nil {
			return false
		}
		cfg.Server.Port = port
		return true
	})
	set("TASKVAULT_DB_DRIVER", func(v string) bool {
		cfg.Database.Driver = v
		return true
	})
	set("TASKVAULT_DB_PATH", func(v string) bool {
		cfg.Database.SQLite.Path = v
		return true
	})
	set("TASKVAULT_DB_HOST", func(v string) bool {
		cfg.Database.Postgres.Host = v
		return true
	})
	set("TASKVAULT_DB_PORT", func(v string) bool {
		port, err := strconv.Atoi(v)
		if err != nil {
			return false
		}
		cfg.Database.Postgres.Port = port
		return true
	})
	set("TASKVAULT_DB_USER", func(v string) bool {
		cfg.Database.Postgres.User = v
		return true
	})
	set("TASKVAULT_DB_PASSWORD", func(v string) bool {
		cfg.Database.Postgres.Password = v
		return true
	})
	set("TASKVAULT_DB_NAME", func(v string) bool {
		cfg.Database.Postgres.Database = v
		return true
	})
	set("TASKVAULT_DB_SSL_MODE", func(v string) bool {
		cfg.Database.Postgres.SSLMode = v
		return true
	})
	set("TASKVAULT_SERVER_URL", func(v string) bool {
		cfg.Client.BaseURL = v
		return true
	})
	set("TASKVAULT_TIMEOUT", func(v string) bool {
		d, err := time.ParseDuration(v)
		if err != nil {
			return false
		}
		cfg.Client.Timeout = d
		return true
	})
	set("TASKVAULT_CACHE_DIR", func(v string) bool {
		cfg.Cache.Dir = v
		return true
	})
	set("TASKVAULT_LOG_LEVEL", func(v string) bool {
		cfg.Log.Level = v
		return true
	})
	set("TASKVAULT_LOG_FORMAT", func(v string) bool {
		cfg.Log.Format = v
		return true
	})

	return overridden
}

// NewLogger builds the slog logger described by the log section.
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
