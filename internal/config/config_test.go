package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	cfg.Telegram.BotToken = "123:abc"
	cfg.Chatwoot.BaseURL = "https://chatwoot.example.com"
	cfg.Chatwoot.AccountID = 1
	cfg.Chatwoot.InboxID = 2
	cfg.Chatwoot.APIKey = "key"
	return cfg
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != DefaultHTTPAddr {
		t.Fatalf("unexpected addr: %q", cfg.Server.Addr)
	}
	if cfg.Telegram.PollTimeoutSeconds != DefaultPollTimeout {
		t.Fatalf("unexpected poll timeout: %d", cfg.Telegram.PollTimeoutSeconds)
	}
	if cfg.Replay.Schedule != DefaultReplaySchedule || cfg.Replay.BatchSize != DefaultReplayBatch {
		t.Fatalf("unexpected replay defaults: %+v", cfg.Replay)
	}
	if cfg.Postgres.Database != DefaultPGDatabase {
		t.Fatalf("unexpected database: %q", cfg.Postgres.Database)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9090"

[telegram]
bot_token = "123:abc"

[chatwoot]
base_url = "https://chatwoot.example.com"
account_id = 7
inbox_id = 3
api_key = "secret"
webhook_token = "hook"

[send]
token = "send-token"

[replay]
schedule = "@every 30s"
batch_size = 10
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("unexpected addr: %q", cfg.Server.Addr)
	}
	if cfg.Chatwoot.AccountID != 7 || cfg.Chatwoot.InboxID != 3 {
		t.Fatalf("unexpected chatwoot config: %+v", cfg.Chatwoot)
	}
	if cfg.Chatwoot.WebhookToken != "hook" {
		t.Fatalf("unexpected webhook token: %q", cfg.Chatwoot.WebhookToken)
	}
	if !cfg.Telegram.IgnoreGroups {
		t.Fatal("ignore_groups must default to true")
	}
	if cfg.Send.Token != "send-token" {
		t.Fatalf("unexpected send token: %q", cfg.Send.Token)
	}
	if cfg.Replay.Schedule != "@every 30s" || cfg.Replay.BatchSize != 10 {
		t.Fatalf("unexpected replay config: %+v", cfg.Replay)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config should validate: %v", err)
	}
}

func TestValidateRejectsMissingRequired(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.Chatwoot.APIKey = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "APIKey") {
		t.Fatalf("error must name the failing field: %v", err)
	}
}

func TestPostgresDSN(t *testing.T) {
	t.Parallel()

	dsn := PostgresConfig{
		Host:     "db.local",
		Port:     5433,
		User:     "bridge",
		Password: "pw",
		Database: "wootbridge",
		SSLMode:  "disable",
	}.DSN()
	want := "postgres://bridge:pw@db.local:5433/wootbridge?sslmode=disable"
	if dsn != want {
		t.Fatalf("unexpected dsn: %q", dsn)
	}
}
