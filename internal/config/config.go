// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type AppConfig struct {
	// Server
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Store
	StoreDriver string `mapstructure:"store_driver"`
	SQLiteDSN   string `mapstructure:"sqlite_dsn"`
	DatabaseURL string `mapstructure:"database_url"`
	SeedOnStart bool   `mapstructure:"seed_on_start"`

	// Redis change feed; an empty address keeps events in-process
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPass     string `mapstructure:"redis_pass"`
	RedisDB       int    `mapstructure:"redis_db"`
	EventsChannel string `mapstructure:"events_channel"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// HTTP edge
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	RateLimitRPS       float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst     int      `mapstructure:"rate_limit_burst"`
}

// Load merges defaults, an optional config.yaml and environment variables, in
// increasing order of precedence.
func Load() (AppConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return AppConfig{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.CORSAllowedOrigins = trimAll(cfg.CORSAllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("store_driver", DriverSQLite)
	v.SetDefault("sqlite_dsn", "file:policies?mode=memory&cache=shared")
	v.SetDefault("database_url", "")
	v.SetDefault("seed_on_start", true)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_pass", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("events_channel", "policy-events")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("cors_allowed_origins", []string{"*"})
	v.SetDefault("rate_limit_rps", 50.0)
	v.SetDefault("rate_limit_burst", 100)
}

// Validate rejects combinations the server cannot start with.
func (c AppConfig) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLiteDSN == "" {
			return errors.New("SQLITE_DSN must not be empty")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want %s or %s)", c.StoreDriver, DriverSQLite, DriverPostgres)
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("unknown LOG_FORMAT %q (want json or console)", c.LogFormat)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// RedisEnabled reports whether events should travel through Redis.
func (c AppConfig) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
