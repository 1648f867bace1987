// Package config provides configuration management for the bond
// notification service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	MOEX      MOEXConfig      `mapstructure:"moex"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Billing   BillingConfig   `mapstructure:"billing"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds persistence configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// MOEXConfig holds upstream market-data API configuration.
type MOEXConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CouponPageLimit int           `mapstructure:"coupon_page_limit"`
}

// SchedulerConfig holds scheduled job configuration. Times are local
// wall-clock "HH:MM" values; both jobs run once per day.
type SchedulerConfig struct {
	SyncAt        string `mapstructure:"sync_at"`
	NotifyAt      string `mapstructure:"notify_at"`
	NotifyOnStart bool   `mapstructure:"notify_on_start"`
}

// TelegramConfig holds outbound messaging configuration.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

// BillingConfig holds subscription plan pricing in rubles.
type BillingConfig struct {
	BasicPrice   float64 `mapstructure:"basic_price"`
	OptimalPrice float64 `mapstructure:"optimal_price"`
	ProPrice     float64 `mapstructure:"pro_price"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/bondwatch"
	}
	return filepath.Join(home, ".config", "bondwatch")
}

// DefaultDBPath returns the default database location.
func DefaultDBPath() string {
	return filepath.Join(DefaultConfigDir(), "bondwatch.db")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		// Config file not found, write the template for next time
		if err := createTemplateConfig(configDir); err != nil {
			return nil, fmt.Errorf("creating config template: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDBPath())
	v.SetDefault("moex.base_url", "https://iss.moex.com")
	v.SetDefault("moex.timeout", "15s")
	v.SetDefault("moex.coupon_page_limit", 20)
	v.SetDefault("scheduler.sync_at", "03:00")
	v.SetDefault("scheduler.notify_at", "10:00")
	v.SetDefault("scheduler.notify_on_start", true)
	v.SetDefault("billing.basic_price", 149.0)
	v.SetDefault("billing.optimal_price", 299.0)
	v.SetDefault("billing.pro_price", 499.0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BONDWATCH_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("BONDWATCH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("BONDWATCH_MOEX_URL"); v != "" {
		cfg.MOEX.BaseURL = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.MOEX.BaseURL == "" {
		return fmt.Errorf("moex.base_url must not be empty")
	}
	if c.MOEX.Timeout <= 0 {
		return fmt.Errorf("moex.timeout must be positive")
	}
	if c.MOEX.CouponPageLimit <= 0 {
		return fmt.Errorf("moex.coupon_page_limit must be positive")
	}
	if err := validateClock(c.Scheduler.SyncAt); err != nil {
		return fmt.Errorf("scheduler.sync_at: %w", err)
	}
	if err := validateClock(c.Scheduler.NotifyAt); err != nil {
		return fmt.Errorf("scheduler.notify_at: %w", err)
	}
	for name, price := range map[string]float64{
		"basic_price":   c.Billing.BasicPrice,
		"optimal_price": c.Billing.OptimalPrice,
		"pro_price":     c.Billing.ProPrice,
	} {
		if price < 0 {
			return fmt.Errorf("billing.%s must be non-negative", name)
		}
	}
	return nil
}

func validateClock(s string) error {
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("expected HH:MM, got %q", s)
	}
	return nil
}
