package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TOD_REDIS_ADDR.
const EnvPrefix = "TOD_"

const (
	ContentSourceEmbedded = "embedded"
	ContentSourcePostgres = "postgres"

	SnapshotBackendMemory = "memory"
	SnapshotBackendRedis  = "redis"
	SnapshotBackendSQLite = "sqlite"
)

type ServerConfig struct {
	Port string `yaml:"port" env:"PORT"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	// TTL applies to cached content and saved games.
	TTL string `yaml:"ttl" env:"TTL"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"URL"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// ContentConfig selects where truths, dares and pledges come from.
type ContentConfig struct {
	// Source is "embedded" (YAML shipped in the binary) or "postgres".
	Source string `yaml:"source" env:"SOURCE"`
	// Dir optionally replaces the embedded YAML with files from disk.
	Dir string `yaml:"dir" env:"DIR"`
	TTL string `yaml:"ttl" env:"TTL"`
}

type SnapshotConfig struct {
	// Backend is "memory", "redis" or "sqlite".
	Backend string `yaml:"backend" env:"BACKEND"`
}

type GameConfig struct {
	TotalRounds     int    `yaml:"total_rounds" env:"TOTAL_ROUNDS"`
	MaxPlayers      int    `yaml:"max_players" env:"MAX_PLAYERS"`
	DefaultLanguage string `yaml:"default_language" env:"DEFAULT_LANGUAGE"`
}

type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `yaml:"level" env:"LEVEL"`
	// Format is "json" or "console".
	Format string `yaml:"format" env:"FORMAT"`
}

type Config struct {
	Server    ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Redis     RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	Postgres  PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`
	SQLite    SQLiteConfig   `yaml:"sqlite" envPrefix:"SQLITE_"`
	Content   ContentConfig  `yaml:"content" envPrefix:"CONTENT_"`
	Snapshots SnapshotConfig `yaml:"snapshots" envPrefix:"SNAPSHOTS_"`
	Game      GameConfig     `yaml:"game" envPrefix:"GAME_"`
	Logging   LoggingConfig  `yaml:"logging" envPrefix:"LOGGING_"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server:    ServerConfig{Port: "8080"},
		Redis:     RedisConfig{TTL: "24h"},
		SQLite:    SQLiteConfig{Path: "data/games.db"},
		Content:   ContentConfig{Source: ContentSourceEmbedded, TTL: "10m"},
		Snapshots: SnapshotConfig{Backend: SnapshotBackendMemory},
		Game:      GameConfig{TotalRounds: 20, MaxPlayers: 10, DefaultLanguage: "en"},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads YAML config from path on top of the defaults, then applies
// TOD_* environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, err
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks all configuration invariants and reports every violation.
func (c Config) Validate() error {
	var errs []string

	switch c.Content.Source {
	case ContentSourceEmbedded:
	case ContentSourcePostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, "content.source postgres requires postgres.url")
		}
	default:
		errs = append(errs, fmt.Sprintf("content.source must be one of [embedded, postgres], got %q", c.Content.Source))
	}

	switch c.Snapshots.Backend {
	case SnapshotBackendMemory:
	case SnapshotBackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, "snapshots.backend redis requires redis.addr")
		}
	case SnapshotBackendSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, "snapshots.backend sqlite requires sqlite.path")
		}
	default:
		errs = append(errs, fmt.Sprintf("snapshots.backend must be one of [memory, redis, sqlite], got %q", c.Snapshots.Backend))
	}

	if c.Game.TotalRounds < 1 {
		errs = append(errs, fmt.Sprintf("game.total_rounds must be >= 1, got %d", c.Game.TotalRounds))
	}
	if c.Game.MaxPlayers < 2 {
		errs = append(errs, fmt.Sprintf("game.max_players must be >= 2, got %d", c.Game.MaxPlayers))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, "redis.db must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Sprintf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
