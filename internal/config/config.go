// Package config provides runtime configuration values for the monitor.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds every knob the process reads at startup. API credentials are
// mandatory; Telegram credentials are optional and merely disable the
// operator channel when absent.
type Config struct {
	APIKey     string
	APISecret  string
	APIBaseURL string

	TelegramToken  string
	TelegramChatID string

	RedisAddr string
	MySQLDSN  string

	PollInterval            time.Duration
	ConversationIdleTimeout time.Duration
	MetricsAddr             string
}

// ErrMissingCredentials is the only fatal configuration failure: without the
// API key pair no signed request can be built.
var ErrMissingCredentials = errors.New("API_KEY and API_SECRET must be set")

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvs(key string, defSec int) time.Duration {
	return time.Duration(atoienv(key, defSec)) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() (Config, error) {
	cfg := Config{
		APIKey:     os.Getenv("API_KEY"),
		APISecret:  os.Getenv("API_SECRET"),
		APIBaseURL: getenv("API_BASE_URL", "https://tokoku-gateway.itemku.com/api"),

		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),

		RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
		MySQLDSN:  getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/fulfillment?parseTime=true"),

		PollInterval:            durenvs("POLL_INTERVAL_SEC", 10),
		ConversationIdleTimeout: durenvs("CONVERSATION_IDLE_TIMEOUT_SEC", 1800),
		MetricsAddr:             getenv("METRICS_ADDR", ":9090"),
	}

	if cfg.APIKey == "" || cfg.APISecret == "" {
		return Config{}, ErrMissingCredentials
	}

	return cfg, nil
}

// ChannelEnabled reports whether the Telegram channel is configured.
func (c Config) ChannelEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}
