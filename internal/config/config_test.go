package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesTemplateAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("expected template config.toml to be written: %v", err)
	}

	if cfg.MOEX.BaseURL != "https://iss.moex.com" {
		t.Errorf("unexpected default base URL: %s", cfg.MOEX.BaseURL)
	}
	if cfg.MOEX.Timeout != 15*time.Second {
		t.Errorf("unexpected default timeout: %s", cfg.MOEX.Timeout)
	}
	if cfg.Scheduler.SyncAt != "03:00" || cfg.Scheduler.NotifyAt != "10:00" {
		t.Errorf("unexpected default schedule: %s / %s", cfg.Scheduler.SyncAt, cfg.Scheduler.NotifyAt)
	}
	if cfg.Billing.BasicPrice <= 0 || cfg.Billing.ProPrice <= cfg.Billing.BasicPrice {
		t.Errorf("unexpected default prices: %+v", cfg.Billing)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[moex]
base_url = "http://localhost:8080"
timeout = "5s"

[scheduler]
sync_at = "04:30"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing config failed: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MOEX.BaseURL != "http://localhost:8080" {
		t.Errorf("file value not applied: %s", cfg.MOEX.BaseURL)
	}
	if cfg.MOEX.Timeout != 5*time.Second {
		t.Errorf("file timeout not applied: %s", cfg.MOEX.Timeout)
	}
	if cfg.Scheduler.SyncAt != "04:30" {
		t.Errorf("file sync_at not applied: %s", cfg.Scheduler.SyncAt)
	}
	// Untouched keys keep their defaults.
	if cfg.Scheduler.NotifyAt != "10:00" {
		t.Errorf("default notify_at lost: %s", cfg.Scheduler.NotifyAt)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BONDWATCH_TELEGRAM_TOKEN", "test-token")
	t.Setenv("BONDWATCH_MOEX_URL", "http://127.0.0.1:9999")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Telegram.BotToken != "test-token" {
		t.Errorf("token override not applied: %q", cfg.Telegram.BotToken)
	}
	if cfg.MOEX.BaseURL != "http://127.0.0.1:9999" {
		t.Errorf("URL override not applied: %q", cfg.MOEX.BaseURL)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database:  DatabaseConfig{Path: "/tmp/test.db"},
			MOEX:      MOEXConfig{BaseURL: "https://iss.moex.com", Timeout: 15 * time.Second, CouponPageLimit: 20},
			Scheduler: SchedulerConfig{SyncAt: "03:00", NotifyAt: "10:00"},
			Billing:   BillingConfig{BasicPrice: 149, OptimalPrice: 299, ProPrice: 499},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"empty base url", func(c *Config) { c.MOEX.BaseURL = "" }},
		{"zero timeout", func(c *Config) { c.MOEX.Timeout = 0 }},
		{"zero page limit", func(c *Config) { c.MOEX.CouponPageLimit = 0 }},
		{"bad sync time", func(c *Config) { c.Scheduler.SyncAt = "25:99" }},
		{"bad notify time", func(c *Config) { c.Scheduler.NotifyAt = "noon" }},
		{"negative price", func(c *Config) { c.Billing.BasicPrice = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
