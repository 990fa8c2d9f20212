package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all finalert configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
	Check   CheckConfig   `mapstructure:"check"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// ServerConfig defines the HTTP API settings.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
}

// CheckConfig defines the alert rule batch settings.
type CheckConfig struct {
	LockBackend string        `mapstructure:"lock_backend"`
	LockKey     string        `mapstructure:"lock_key"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	DedupWindow time.Duration `mapstructure:"dedup_window"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Cleanup     bool          `mapstructure:"cleanup"`
}

// RedisConfig defines the Redis connection used by the redis lock backend.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// AlertsConfig defines external delivery of rule notifications.
type AlertsConfig struct {
	MinPriority string        `mapstructure:"min_priority"`
	Slack       SlackConfig   `mapstructure:"slack"`
	Webhook     WebhookConfig `mapstructure:"webhook"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
}

// LoggingConfig defines logging settings. File enables rotated file output.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// MetricsConfig defines Prometheus settings.
type MetricsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// Load reads configuration from .env, the config file and environment variables.
func Load(cfgFile string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".finalert"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("FINALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	cfg.Logging.File = expandHome(cfg.Logging.File)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", filepath.Join(home, ".finalert", "finalert.db"))
	v.SetDefault("storage.dsn", "")
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.mode", "release")
	v.SetDefault("check.lock_backend", "sql")
	v.SetDefault("check.lock_key", "check-alerts")
	v.SetDefault("check.lock_ttl", "10m")
	v.SetDefault("check.dedup_window", "24h")
	v.SetDefault("check.timeout", "5m")
	v.SetDefault("check.cleanup", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "finalert:lock:")
	v.SetDefault("alerts.min_priority", "high")
	v.SetDefault("alerts.slack.enabled", false)
	v.SetDefault("alerts.slack.webhook_url", "")
	v.SetDefault("alerts.slack.channel", "#finance-alerts")
	v.SetDefault("alerts.webhook.enabled", false)
	v.SetDefault("alerts.webhook.url", "")
	v.SetDefault("alerts.webhook.secret", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "finalert_check")
}

// Validate checks enumerated settings and durations.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be sqlite or postgres, got %q", c.Storage.Driver)
	}

	switch c.Check.LockBackend {
	case "sql", "redis", "none":
	default:
		return fmt.Errorf("check.lock_backend must be sql, redis or none, got %q", c.Check.LockBackend)
	}
	if c.Check.LockTTL <= 0 {
		return errors.New("check.lock_ttl must be positive")
	}
	if c.Check.DedupWindow < 0 {
		return errors.New("check.dedup_window must not be negative")
	}
	if c.Check.Timeout <= 0 {
		return errors.New("check.timeout must be positive")
	}
	if c.Check.LockTTL < c.Check.Timeout {
		return fmt.Errorf("check.lock_ttl (%s) must not be shorter than check.timeout (%s)", c.Check.LockTTL, c.Check.Timeout)
	}

	switch c.Alerts.MinPriority {
	case "low", "normal", "high":
	default:
		return fmt.Errorf("alerts.min_priority must be low, normal or high, got %q", c.Alerts.MinPriority)
	}
	if c.Alerts.Slack.Enabled && c.Alerts.Slack.WebhookURL == "" {
		return errors.New("alerts.slack.webhook_url is required when slack is enabled")
	}
	if c.Alerts.Webhook.Enabled && c.Alerts.Webhook.URL == "" {
		return errors.New("alerts.webhook.url is required when the webhook is enabled")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.Storage.Driver == "postgres" {
		return c.Storage.DSN
	}
	return c.Storage.Path
}

// loadDotEnv loads variables from env files that exist. Variables already
// set in the environment win.
func loadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
