package config

import (
	"os"
	"testing"
	"time"

	"github.com/minhvq/gapspike/internal/models"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:   ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Engine: EngineConfig{
			GapPercentDefault:   0.3,
			SpikePercentDefault: 1.3,
			GracePeriod:         15 * time.Second,
			StaleAfter:          30 * time.Second,
			DelayAfter:          180 * time.Second,
			PollInterval:        2 * time.Second,
		},
		Storage: StorageConfig{
			DBPath:    "./data/test.db",
			MaxAlerts: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func TestLoadAndValidate(t *testing.T) {
	// Create temp config file
	content := `
server:
  listen_addr: ":9090"

engine:
  gap_percent_default: 0.25
  spike_percent_default: 1.5
  grace_period: 20s

symbol_filter:
  enabled: true
  selection:
    ICMarkets-Live:
      - EURUSD
      - XAUUSD

symbols:
  - name: EURUSD
    aliases: [EURUSDm, EU]
    default_gap_percent: 0.15
  - name: XAUUSD
    aliases: [GOLD]
    default_gap_percent: 2.0
    custom_gap: 100

overrides:
  ICMarkets-Live_XAUUSD:
    gap_percent: 0.8

telegram:
  bot_token: "test_token"
  chat_id: "test_chat_id"
  enabled: true

storage:
  max_alerts: 1000
  db_path: "./data/test.db"

logging:
  level: "info"
  format: "text"
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Remove(tmpfile.Name()) }()

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	// Test Load
	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify values
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("Unexpected listen addr: %s", cfg.Server.ListenAddr)
	}

	if cfg.Engine.GapPercentDefault != 0.25 {
		t.Errorf("Unexpected gap default: %f", cfg.Engine.GapPercentDefault)
	}

	if cfg.Engine.GracePeriod != 20*time.Second {
		t.Errorf("Unexpected grace period: %v", cfg.Engine.GracePeriod)
	}

	// Defaults fill unspecified values
	if cfg.Engine.StaleAfter != 30*time.Second {
		t.Errorf("Unexpected stale-after default: %v", cfg.Engine.StaleAfter)
	}
	if cfg.Engine.PollInterval != 2*time.Second {
		t.Errorf("Unexpected poll interval default: %v", cfg.Engine.PollInterval)
	}

	if len(cfg.Symbols) != 2 {
		t.Fatalf("Expected 2 symbols, got %d", len(cfg.Symbols))
	}
	if cfg.Symbols[1].CustomGapScale != 100 {
		t.Errorf("Unexpected custom gap scale: %f", cfg.Symbols[1].CustomGapScale)
	}

	ov, ok := cfg.Overrides["ICMarkets-Live_XAUUSD"]
	if !ok || ov.GapPercent == nil || *ov.GapPercent != 0.8 {
		t.Errorf("Unexpected override: %+v", ov)
	}

	if len(cfg.SymbolFilter.Selection["ICMarkets-Live"]) != 2 {
		t.Errorf("Unexpected symbol filter selection: %+v", cfg.SymbolFilter.Selection)
	}

	// Test Validate
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing listen addr",
			mutate:  func(c *Config) { c.Server.ListenAddr = "" },
			wantErr: true,
		},
		{
			name:    "negative gap default",
			mutate:  func(c *Config) { c.Engine.GapPercentDefault = -0.5 },
			wantErr: true,
		},
		{
			name:    "sub-second grace period",
			mutate:  func(c *Config) { c.Engine.GracePeriod = 500 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "missing telegram token when enabled",
			mutate:  func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "chat" },
			wantErr: true,
		},
		{
			name:    "missing db path",
			mutate:  func(c *Config) { c.Storage.DBPath = "" },
			wantErr: true,
		},
		{
			name:    "zero max alerts",
			mutate:  func(c *Config) { c.Storage.MaxAlerts = 0 },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: true,
		},
		{
			name: "symbol without name",
			mutate: func(c *Config) {
				c.Symbols = append(c.Symbols, models.CanonicalConfig{Name: ""})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
