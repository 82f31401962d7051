// Package config loads server configuration from defaults, an optional YAML
// file and NOUGHTS_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. NOUGHTS_HTTP_PORT
const EnvPrefix = "NOUGHTS"

// Keys, as used in YAML files and (upper-cased) in the environment
const (
	KeyStorageType   = "storage_type"
	KeyRedisURL      = "redis_url"
	KeyPostgresDSN   = "postgres_dsn"
	KeyHTTPHost      = "http_host"
	KeyHTTPPort      = "http_port"
	KeyPurgeInterval = "purge_interval"
	KeyPurgeAfter    = "purge_after"
	KeyLogLevel      = "log_level"
	KeyLogFormat     = "log_format"
)

// Config is the server configuration
type Config struct {
	// StorageType selects the session store: memory, redis or postgres
	StorageType string `mapstructure:"storage_type"`
	RedisURL    string `mapstructure:"redis_url"`
	PostgresDSN string `mapstructure:"postgres_dsn"`

	HTTPHost string `mapstructure:"http_host"`
	HTTPPort int    `mapstructure:"http_port"`

	// PurgeInterval is how often stale sessions are swept
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
	// PurgeAfter is the age at which an unfinished session is stale
	PurgeAfter time.Duration `mapstructure:"purge_after"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// New returns a viper instance with defaults and environment binding set up.
// Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyStorageType, "memory")
	v.SetDefault(KeyRedisURL, "redis://localhost:6379/0")
	v.SetDefault(KeyPostgresDSN, "")
	v.SetDefault(KeyHTTPHost, "")
	v.SetDefault(KeyHTTPPort, 8080)
	v.SetDefault(KeyPurgeInterval, "30s")
	v.SetDefault(KeyPurgeAfter, "5m")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	return v
}

// Load reads the optional config file at path into v and returns the
// validated result. An empty path skips the file.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var errs []error

	switch c.StorageType {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis_url is required when storage_type is redis"))
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres_dsn is required when storage_type is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage_type must be one of [memory, redis, postgres], got %q", c.StorageType))
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http_port must be 1-65535, got %d", c.HTTPPort))
	}
	if c.PurgeInterval <= 0 {
		errs = append(errs, fmt.Errorf("purge_interval must be positive, got %s", c.PurgeInterval))
	}
	if c.PurgeAfter <= 0 {
		errs = append(errs, fmt.Errorf("purge_after must be positive, got %s", c.PurgeAfter))
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("log_format must be one of [json, text], got %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// NewLogger builds the application logger described by the config
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level must be one of [debug, info, warn, error], got %q", s)
	}
	return level, nil
}
