// Package config loads and exposes application configuration (TOML).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath  = "config.toml"
	DefaultPromptsPath = "prompts.yaml"
	DefaultPGHost      = "127.0.0.1"
	DefaultPGPort      = 5432
	DefaultPGUser      = "postgres"
	DefaultPGDatabase  = "herald"
	DefaultPGSSLMode   = "disable"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Discord  DiscordConfig  `toml:"discord"`
	Prompts  PromptsConfig  `toml:"prompts"`
	Postgres PostgresConfig `toml:"postgres"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DiscordConfig holds the bot gateway token. The HERALD_DISCORD_TOKEN
// environment variable takes precedence over the file so the token can stay
// out of the config on disk.
type DiscordConfig struct {
	BotToken string `toml:"bot_token"`
}

// PromptsConfig holds the path to the YAML prompt rules file.
type PromptsConfig struct {
	Path string `toml:"path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Prompts: PromptsConfig{
			Path: DefaultPromptsPath,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}

	if token := strings.TrimSpace(os.Getenv("HERALD_DISCORD_TOKEN")); token != "" {
		cfg.Discord.BotToken = token
	}
	return cfg, nil
}
