// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/minhvq/gapspike/internal/models"
)

// Config represents the complete application configuration.
type Config struct {
	Server       ServerConfig                        `mapstructure:"server"`
	Engine       EngineConfig                        `mapstructure:"engine"`
	SymbolFilter SymbolFilterConfig                  `mapstructure:"symbol_filter"`
	Symbols      []models.CanonicalConfig            `mapstructure:"symbols"`
	Overrides    map[string]models.ThresholdOverride `mapstructure:"overrides"`
	Telegram     TelegramConfig                      `mapstructure:"telegram"`
	Storage      StorageConfig                       `mapstructure:"storage"`
	Logging      LoggingConfig                       `mapstructure:"logging"`
}

// ServerConfig holds the tick-ingestion HTTP server configuration.
type ServerConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// EngineConfig holds detection behavior configuration.
type EngineConfig struct {
	GapPercentDefault   float64       `mapstructure:"gap_percent_default"`
	SpikePercentDefault float64       `mapstructure:"spike_percent_default"`
	GracePeriod         time.Duration `mapstructure:"grace_period"`
	StaleAfter          time.Duration `mapstructure:"stale_after"`
	DelayAfter          time.Duration `mapstructure:"delay_after"`
	RequireMarketOpen   bool          `mapstructure:"require_market_open"`
	IgnoreAfterOpen     time.Duration `mapstructure:"ignore_after_open"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
}

// SymbolFilterConfig holds the per-venue instrument allow-list.
type SymbolFilterConfig struct {
	Enabled   bool                `mapstructure:"enabled"`
	Selection map[string][]string `mapstructure:"selection"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds alert-history persistence configuration.
type StorageConfig struct {
	DBPath    string `mapstructure:"db_path"`
	MaxAlerts int    `mapstructure:"max_alerts"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("GAPSPIKE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")

	v.SetDefault("engine.gap_percent_default", 0.3)
	v.SetDefault("engine.spike_percent_default", 1.3)
	v.SetDefault("engine.grace_period", "15s")
	v.SetDefault("engine.stale_after", "30s")
	v.SetDefault("engine.delay_after", "180s")
	v.SetDefault("engine.require_market_open", false)
	v.SetDefault("engine.ignore_after_open", "0s")
	v.SetDefault("engine.poll_interval", "2s")

	v.SetDefault("symbol_filter.enabled", false)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("storage.db_path", "./data/gapspike.db")
	v.SetDefault("storage.max_alerts", 5000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	if c.Engine.GapPercentDefault < 0 {
		return fmt.Errorf("engine.gap_percent_default must not be negative")
	}
	if c.Engine.SpikePercentDefault < 0 {
		return fmt.Errorf("engine.spike_percent_default must not be negative")
	}
	if c.Engine.GracePeriod < time.Second {
		return fmt.Errorf("engine.grace_period must be at least 1 second")
	}
	if c.Engine.StaleAfter < time.Second {
		return fmt.Errorf("engine.stale_after must be at least 1 second")
	}
	if c.Engine.DelayAfter < time.Second {
		return fmt.Errorf("engine.delay_after must be at least 1 second")
	}
	if c.Engine.IgnoreAfterOpen < 0 {
		return fmt.Errorf("engine.ignore_after_open must not be negative")
	}
	if c.Engine.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("engine.poll_interval must be at least 100ms")
	}

	for i := range c.Symbols {
		if err := c.Symbols[i].Validate(); err != nil {
			return fmt.Errorf("symbols[%d]: %w", i, err)
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxAlerts < 1 {
		return fmt.Errorf("storage.max_alerts must be at least 1")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "verbose": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: text, verbose")
	}

	return nil
}
