package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: "polling"}}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
	if cfg.RateLimit.Burst != 1 {
		t.Fatalf("burst = %d, want 1", cfg.RateLimit.Burst)
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]Config{
		"missing token": {},
		"bad run mode":  {Telegram: TelegramConfig{Token: "t", RunMode: "carrier-pigeon"}},
		"webhook without url": {
			Telegram: TelegramConfig{Token: "t", RunMode: RunModeWebhook},
			Webhook:  WebhookConfig{Listen: "0.0.0.0", Port: 8443},
		},
		"negative admin": {Telegram: TelegramConfig{Token: "t", AdminIDs: []int64{-5}}},
		"bad exclusion": {
			Telegram:  TelegramConfig{Token: "t"},
			RateLimit: RateLimitConfig{ExcludeUpdates: []string{"inline_query"}},
		},
	}
	for name, cfg := range cases {
		cfg := cfg
		t.Run(name, func(t *testing.T) {
			if err := Normalize(&cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadYAMLWithEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("telegram:\n  token: from-file\n  admin_ids: [1, 2]\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, want env override", cfg.Telegram.Token)
	}
	if !cfg.IsAdmin(2) || cfg.IsAdmin(3) {
		t.Fatalf("unexpected admin set %v", cfg.Telegram.AdminIDs)
	}
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-only")
	t.Setenv("ADMIN_IDS", "10,20")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "env-only" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.AdminIDs) != 2 || !cfg.IsAdmin(20) {
		t.Fatalf("admin ids = %v", cfg.Telegram.AdminIDs)
	}
}
