// Package config loads kidscard configuration from file, environment, and
// defaults, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration. The sync section is passed
// into the engine at construction; nothing here is process-global.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Log     LogConfig     `mapstructure:"log"`
}

// StorageConfig locates the local database.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// RemoteConfig identifies the remote collections and the owner identity
// they are scoped by.
type RemoteConfig struct {
	URL   string `mapstructure:"url"`
	Owner string `mapstructure:"owner"`
	Token string `mapstructure:"token"`
}

// SyncConfig tunes the engine. Durations accept Go syntax ("30s", "2m").
type SyncConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	BatchSize        int           `mapstructure:"batch_size"`
	PageSize         int           `mapstructure:"page_size"`
	Debounce         time.Duration `mapstructure:"debounce"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	AutoSyncCooldown time.Duration `mapstructure:"auto_sync_cooldown"`
	HydrateAttempts  int           `mapstructure:"hydrate_attempts"`
}

// LogConfig configures the rotating daemon log. An empty file means log to
// stderr.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DefaultDir returns the per-user kidscard directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kidscard"
	}
	return filepath.Join(home, ".kidscard")
}

// Load reads configuration from the given file (or the default location
// when path is empty), applying KIDSCARD_* environment overrides. A
// missing config file is not an error; defaults apply.
func Load(path string) (Config, error) {
	v := viper.New()

	dir := DefaultDir()
	v.SetDefault("storage.path", filepath.Join(dir, "kidscard.db"))
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.owner", "")
	v.SetDefault("remote.token", "")
	v.SetDefault("sync.enabled", false)
	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.page_size", 100)
	v.SetDefault("sync.debounce", 2*time.Second)
	v.SetDefault("sync.cooldown", 30*time.Second)
	v.SetDefault("sync.auto_sync_cooldown", 60*time.Second)
	v.SetDefault("sync.hydrate_attempts", 3)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 30)

	v.SetEnvPrefix("KIDSCARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
