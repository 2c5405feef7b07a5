package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultPollTimeout    = 30
	DefaultAPITimeout     = 10
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "wootbridge"
	DefaultPGSSLMode      = "disable"
	DefaultReplaySchedule = "@every 1m"
	DefaultReplayBatch    = 50
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Telegram TelegramConfig `toml:"telegram"`
	Chatwoot ChatwootConfig `toml:"chatwoot"`
	Send     SendConfig     `toml:"send"`
	Postgres PostgresConfig `toml:"postgres"`
	Replay   ReplayConfig   `toml:"replay"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type TelegramConfig struct {
	BotToken           string `toml:"bot_token" validate:"required"`
	PollTimeoutSeconds int    `toml:"poll_timeout_seconds"`
	IgnoreGroups       bool   `toml:"ignore_groups"`
}

type ChatwootConfig struct {
	BaseURL        string `toml:"base_url" validate:"required,url"`
	AccountID      int    `toml:"account_id" validate:"required,gt=0"`
	InboxID        int    `toml:"inbox_id" validate:"required,gt=0"`
	APIKey         string `toml:"api_key" validate:"required"`
	WebhookToken   string `toml:"webhook_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// SendConfig guards the channel-send endpoint. An empty token disables the
// endpoint entirely.
type SendConfig struct {
	Token string `toml:"token"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DSN builds the connection string for the pool and the migration runner.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type ReplayConfig struct {
	Schedule  string `toml:"schedule"`
	BatchSize int    `toml:"batch_size"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Telegram: TelegramConfig{
			PollTimeoutSeconds: DefaultPollTimeout,
			IgnoreGroups:       true,
		},
		Chatwoot: ChatwootConfig{
			TimeoutSeconds: DefaultAPITimeout,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Replay: ReplayConfig{
			Schedule:  DefaultReplaySchedule,
			BatchSize: DefaultReplayBatch,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate reports the first missing or malformed required setting.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) && len(invalid) > 0 {
		field := invalid[0]
		return fmt.Errorf("config: %s fails %q", field.Namespace(), field.Tag())
	}
	return fmt.Errorf("config: %w", err)
}
