// Package config loads application configuration from file, environment
// and defaults via viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// ErrMissingSourceURL is returned when no posting source is configured.
var ErrMissingSourceURL = errors.New("watch.source_url is required")

// AppConfig identifies the application instance.
type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Debug       bool
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Level       string
	Encoding    string
	Development bool
}

// WatchConfig configures the check scheduler and posting source.
type WatchConfig struct {
	// SourceURL is the JSON endpoint returning the current batch.
	SourceURL string
	// Interval between periodic checks.
	Interval time.Duration
	// InitialDelay before the first check after start.
	InitialDelay time.Duration
	// Cron optionally arms an additional five-field cron trigger.
	Cron string
	// FetchTimeout bounds one source fetch.
	FetchTimeout time.Duration
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// StoreConfig selects and configures the snapshot store backend.
type StoreConfig struct {
	// Backend is one of memory, file, redis.
	Backend string
	// Path is the snapshot file location for the file backend.
	Path string
	// Redis configures the redis backend (and the alert channel).
	Redis RedisConfig
}

// NotifyConfig configures the notification sinks.
type NotifyConfig struct {
	// Expiry is how long a presented alert stays up.
	Expiry time.Duration
	// OSEnabled turns the OS-level notification sink on.
	OSEnabled bool
	// OSCommand is the external notification command (e.g. notify-send).
	// Empty means log-only.
	OSCommand string
	// OSArgs are prepended to the summary argument.
	OSArgs []string
	// Channel is the Redis pub/sub channel for UI alerts. Empty
	// disables the Redis presenter.
	Channel string
}

// ServerConfig configures the optional HTTP status API.
type ServerConfig struct {
	Enabled bool
	Address string
}

// Config is the root configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Watch  WatchConfig
	Store  StoreConfig
	Notify NotifyConfig
	Server ServerConfig
}

// Load reads the configuration from viper's current state. Defaults and
// env bindings are established by the command layer before calling.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        viper.GetString("app.name"),
			Version:     viper.GetString("app.version"),
			Environment: viper.GetString("app.environment"),
			Debug:       viper.GetBool("app.debug"),
		},
		Logger: LoggerConfig{
			Level:       viper.GetString("logger.level"),
			Encoding:    viper.GetString("logger.encoding"),
			Development: viper.GetBool("logger.development"),
		},
		Watch: WatchConfig{
			SourceURL:    viper.GetString("watch.source_url"),
			Interval:     viper.GetDuration("watch.interval"),
			InitialDelay: viper.GetDuration("watch.initial_delay"),
			Cron:         viper.GetString("watch.cron"),
			FetchTimeout: viper.GetDuration("watch.fetch_timeout"),
		},
		Store: StoreConfig{
			Backend: viper.GetString("store.backend"),
			Path:    viper.GetString("store.path"),
			Redis: RedisConfig{
				Addr:      viper.GetString("store.redis.addr"),
				Password:  viper.GetString("store.redis.password"),
				DB:        viper.GetInt("store.redis.db"),
				KeyPrefix: viper.GetString("store.redis.key_prefix"),
			},
		},
		Notify: NotifyConfig{
			Expiry:    viper.GetDuration("notify.expiry"),
			OSEnabled: viper.GetBool("notify.os_enabled"),
			OSCommand: viper.GetString("notify.os_command"),
			OSArgs:    viper.GetStringSlice("notify.os_args"),
			Channel:   viper.GetString("notify.channel"),
		},
		Server: ServerConfig{
			Enabled: viper.GetBool("server.enabled"),
			Address: viper.GetString("server.address"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Store.Backend == BackendFile && c.Store.Path == "" {
		return errors.New("store.path is required for the file backend")
	}
	if c.Store.Backend == BackendRedis && c.Store.Redis.Addr == "" {
		return errors.New("store.redis.addr is required for the redis backend")
	}
	if c.Notify.Channel != "" && c.Store.Redis.Addr == "" {
		return errors.New("notify.channel requires store.redis.addr")
	}
	if c.Watch.Interval <= 0 {
		return errors.New("watch.interval must be positive")
	}
	return nil
}
