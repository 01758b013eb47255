package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Pricing  PricingConfig  `yaml:"pricing"`
	Web      WebConfig      `yaml:"web"`
	Auth     AuthConfig     `yaml:"auth"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Telegram TelegramConfig `yaml:"telegram"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type PricingConfig struct {
	// StockProvider selects the equities source: "yahoo" or "alphavantage".
	StockProvider     string `yaml:"stock_provider"`
	AlphaVantageKey   string `yaml:"alphavantage_key"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	CacheTTLSeconds   int    `yaml:"cache_ttl_seconds"`
	LookupConcurrency int    `yaml:"lookup_concurrency"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type AuthConfig struct {
	SessionTTLHours int `yaml:"session_ttl_hours"`
}

type SnapshotConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	// Secrets may live in a .env file next to the binary; absence is fine.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(cfg)
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Pricing.StockProvider == "" {
		cfg.Pricing.StockProvider = "yahoo"
	}
	if cfg.Pricing.TimeoutSeconds == 0 {
		cfg.Pricing.TimeoutSeconds = 8
	}
	if cfg.Pricing.CacheTTLSeconds == 0 {
		cfg.Pricing.CacheTTLSeconds = 60
	}
	if cfg.Pricing.LookupConcurrency == 0 {
		cfg.Pricing.LookupConcurrency = 4
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Auth.SessionTTLHours == 0 {
		cfg.Auth.SessionTTLHours = 24
	}
	if cfg.Snapshot.Interval == "" {
		cfg.Snapshot.Interval = "1h"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		cfg.Pricing.AlphaVantageKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
}

func (c *Config) Validate() error {
	switch c.Pricing.StockProvider {
	case "yahoo":
	case "alphavantage":
		if c.Pricing.AlphaVantageKey == "" {
			return fmt.Errorf("pricing.alphavantage_key (or ALPHAVANTAGE_API_KEY) is required for the alphavantage provider")
		}
	default:
		return fmt.Errorf("unknown pricing.stock_provider %q (use yahoo or alphavantage)", c.Pricing.StockProvider)
	}
	if _, err := time.ParseDuration(c.Snapshot.Interval); err != nil {
		return fmt.Errorf("invalid snapshot.interval %q: %w", c.Snapshot.Interval, err)
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

func (c *Config) PricingTimeout() time.Duration {
	return time.Duration(c.Pricing.TimeoutSeconds) * time.Second
}

func (c *Config) PricingCacheTTL() time.Duration {
	return time.Duration(c.Pricing.CacheTTLSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLHours) * time.Hour
}

func (c *Config) SnapshotInterval() time.Duration {
	d, _ := time.ParseDuration(c.Snapshot.Interval)
	return d
}
