package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	Token  string `yaml:"token" envconfig:"BOT_TOKEN"`
	APIURL string `yaml:"api_url" envconfig:"TELEGRAM_API_URL"`
	// LongPollTimeoutSeconds bounds a single getUpdates call; 0 -> default
	LongPollTimeoutSeconds int  `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	SkipWebhookCleanup     bool `yaml:"skip_webhook_cleanup" envconfig:"TELEGRAM_SKIP_WEBHOOK_CLEANUP"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// IngestConfig tunes the update ingestion loop.
type IngestConfig struct {
	// Workers > 1 enables per-chat sharded processing.
	Workers        int `yaml:"workers" envconfig:"INGEST_WORKERS"`
	ErrorBackoffMS int `yaml:"error_backoff_ms" envconfig:"INGEST_ERROR_BACKOFF_MS"`
}

// GameConfig points at the external game application.
type GameConfig struct {
	Host string `yaml:"host" envconfig:"GAME_HOST"`
}

// DepositConfig lists the official receiving accounts per payment method.
type DepositConfig struct {
	Accounts map[string]string `yaml:"accounts" envconfig:"DEPOSIT_ACCOUNTS"`
}

// HeartbeatConfig schedules the periodic stats log line.
type HeartbeatConfig struct {
	// Spec is a cron spec such as "@every 5m"; empty disables the job.
	Spec string `yaml:"spec" envconfig:"HEARTBEAT_SPEC"`
}

const (
	DefaultLongPollTimeoutSeconds = 30
	DefaultErrorBackoffMS         = 1000
	DefaultGameHost               = "bingo-an1t.onrender.com"
	DefaultAPIURL                 = "https://api.telegram.org"
)

// Method keys accepted under deposit.accounts.
const (
	MethodAbyssinia = "abyssinia"
	MethodTelebirr  = "telebirr"
	MethodCBE       = "cbe"
)

// DefaultAccounts are the receiving accounts used when none are configured.
var DefaultAccounts = map[string]string{
	MethodAbyssinia: "171629616",
	MethodTelebirr:  "0940844131",
	MethodCBE:       "1000302436267",
}

// Config aggregates the bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Game      GameConfig      `yaml:"game"`
	Deposit   DepositConfig   `yaml:"deposit"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
}

// Load reads configuration from a YAML file and environment variables.
// An empty path skips the file and relies on the environment only.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := Normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads the same sources as Load but validates only the
// database section, for commands that never reach Telegram.
func LoadDatabase(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := normalizeDatabase(&cfg.Database); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Telegram.LongPollTimeoutSeconds < 0 {
		return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
	}
	if cfg.Telegram.LongPollTimeoutSeconds == 0 {
		cfg.Telegram.LongPollTimeoutSeconds = DefaultLongPollTimeoutSeconds
	}
	cfg.Telegram.APIURL = strings.TrimRight(strings.TrimSpace(cfg.Telegram.APIURL), "/")
	if cfg.Telegram.APIURL == "" {
		cfg.Telegram.APIURL = DefaultAPIURL
	}

	if cfg.Ingest.Workers < 0 {
		return fmt.Errorf("ingest.workers must be >= 0")
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 1
	}
	if cfg.Ingest.ErrorBackoffMS < 0 {
		return fmt.Errorf("ingest.error_backoff_ms must be >= 0")
	}
	if cfg.Ingest.ErrorBackoffMS == 0 {
		cfg.Ingest.ErrorBackoffMS = DefaultErrorBackoffMS
	}

	host := strings.TrimSpace(cfg.Game.Host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimRight(host, "/")
	if host == "" {
		host = DefaultGameHost
	}
	cfg.Game.Host = host

	accounts := make(map[string]string, len(DefaultAccounts))
	for k, v := range DefaultAccounts {
		accounts[k] = v
	}
	for k, v := range cfg.Deposit.Accounts {
		key := strings.ToLower(strings.TrimSpace(k))
		if _, ok := DefaultAccounts[key]; !ok {
			return fmt.Errorf("invalid deposit.accounts key %q; allowed: abyssinia, telebirr, cbe", k)
		}
		if v = strings.TrimSpace(v); v != "" {
			accounts[key] = v
		}
	}
	cfg.Deposit.Accounts = accounts

	return normalizeDatabase(&cfg.Database)
}
