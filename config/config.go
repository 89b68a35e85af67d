package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/studio2230704/technical-analysis-dashboard/internal/backtest"
	"github.com/studio2230704/technical-analysis-dashboard/internal/indicator"
	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
	"github.com/studio2230704/technical-analysis-dashboard/internal/portfolio"
)

// DefaultPath is where the CLI looks for the config file.
const DefaultPath = "config.yaml"

var validate = validator.New()

// Config holds all application configuration. It is loaded from a YAML file
// and then overridden by environment variables (and a .env file if present).
type Config struct {
	Engine   indicator.Config     `yaml:"engine"`
	Data     DataConfig           `yaml:"data"`
	Storage  StorageConfig        `yaml:"storage"`
	Alerts   AlertsConfig         `yaml:"alerts"`
	Notify   NotifyConfig         `yaml:"notify"`
	HTTP     HTTPConfig           `yaml:"http"`
	Log      LogConfig            `yaml:"log"`
	Backtest backtest.Config      `yaml:"backtest"`
	Risk     portfolio.RiskLimits `yaml:"risk"`
}

// DataConfig selects where prices come from.
type DataConfig struct {
	Period      string        `yaml:"period" validate:"oneof=1mo 3mo 6mo 1y 2y 5y"`
	RPS         float64       `yaml:"rps" validate:"gt=0"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	CacheMaxAge time.Duration `yaml:"cache_max_age" validate:"gte=0"`
	Watchlist   string        `yaml:"watchlist" validate:"required"`
}

// StorageConfig configures persistence.
type StorageConfig struct {
	SQLitePath string      `yaml:"sqlite_path" validate:"required"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig configures the optional bundle cache and alert fan-out.
type RedisConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Addr          string        `yaml:"addr" validate:"required_if=Enabled true"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db" validate:"gte=0"`
	KeyPrefix     string        `yaml:"key_prefix"`
	BundleTTL     time.Duration `yaml:"bundle_ttl" validate:"gte=0"`
	PublishBuffer int           `yaml:"publish_buffer" validate:"gte=0"`
}

// AlertsConfig configures the scheduled alert check.
type AlertsConfig struct {
	Schedule       string          `yaml:"schedule" validate:"required"`
	RunOnStart     bool            `yaml:"run_on_start"`
	SkipNonTrading bool            `yaml:"skip_non_trading"`
	Timezone       string          `yaml:"timezone"`
	Holidays       []string        `yaml:"holidays,omitempty" validate:"dive,datetime=2006-01-02"`
	CrossPair      model.CrossPair `yaml:"cross_pair"`
	TickerTimeout  time.Duration   `yaml:"ticker_timeout" validate:"gt=0"`
}

// NotifyConfig selects alert delivery backends.
type NotifyConfig struct {
	Log      bool           `yaml:"log"`
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

// TelegramConfig configures Telegram delivery.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token" validate:"required_if=Enabled true"`
	ChatID   string `yaml:"chat_id" validate:"required_if=Enabled true"`
}

// WebhookConfig configures a Google Chat style incoming webhook.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"required_if=Enabled true"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level   string `yaml:"level" validate:"oneof=debug info warn error"`
	Service string `yaml:"service"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Engine: indicator.DefaultConfig(),
		Data: DataConfig{
			Period:      "1y",
			RPS:         2,
			Timeout:     30 * time.Second,
			CacheMaxAge: 6 * time.Hour,
			Watchlist:   "data/watchlist.yaml",
		},
		Storage: StorageConfig{
			SQLitePath: "data/dashboard.db",
			Redis: RedisConfig{
				Addr:          "localhost:6379",
				KeyPrefix:     "tad",
				BundleTTL:     5 * time.Minute,
				PublishBuffer: 1000,
			},
		},
		Alerts: AlertsConfig{
			Schedule:       "@every 1h",
			RunOnStart:     true,
			SkipNonTrading: true,
			Timezone:       "Asia/Tokyo",
			CrossPair:      model.CrossPair{Fast: 25, Slow: 75},
			TickerTimeout:  30 * time.Second,
		},
		Notify: NotifyConfig{Log: true},
		HTTP:   HTTPConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", Service: "tad"},

		Backtest: backtest.DefaultConfig(),
		Risk:     portfolio.DefaultRiskLimits(),
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] .env: %v", err)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() {
	c.Data.Period = getEnv("TAD_PERIOD", c.Data.Period)
	c.Data.Watchlist = getEnv("WATCHLIST_PATH", c.Data.Watchlist)
	c.Storage.SQLitePath = getEnv("SQLITE_PATH", c.Storage.SQLitePath)

	c.Storage.Redis.Addr = getEnv("REDIS_ADDR", c.Storage.Redis.Addr)
	c.Storage.Redis.Password = getEnv("REDIS_PASSWORD", c.Storage.Redis.Password)
	c.Storage.Redis.Enabled = getEnvBool("REDIS_ENABLED", c.Storage.Redis.Enabled)

	c.Alerts.Schedule = getEnv("ALERT_SCHEDULE", c.Alerts.Schedule)
	c.Alerts.Timezone = getEnv("MARKET_TIMEZONE", c.Alerts.Timezone)

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.Telegram.BotToken = v
		c.Notify.Telegram.Enabled = true
	}
	c.Notify.Telegram.ChatID = getEnv("TELEGRAM_CHAT_ID", c.Notify.Telegram.ChatID)
	if v := os.Getenv("GOOGLE_CHAT_WEBHOOK_URL"); v != "" {
		c.Notify.Webhook.URL = v
		c.Notify.Webhook.Enabled = true
	}

	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", c.Log.Level))
	c.Risk.TotalAssets = getEnvFloat("TOTAL_ASSETS", c.Risk.TotalAssets)
}

// Validate checks struct constraints and the indicator engine settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("config engine: %w", err)
	}
	if c.Notify.Webhook.Enabled {
		if err := validate.Var(c.Notify.Webhook.URL, "url"); err != nil {
			return fmt.Errorf("config: notify.webhook.url %q is not a URL", c.Notify.Webhook.URL)
		}
	}
	if !c.hasWindow(c.Alerts.CrossPair) {
		return fmt.Errorf("config: alerts.cross_pair %d/%d must be listed in engine.ma_windows or engine.cross_pairs",
			c.Alerts.CrossPair.Fast, c.Alerts.CrossPair.Slow)
	}
	return nil
}

func (c *Config) hasWindow(p model.CrossPair) bool {
	if p.Fast <= 0 || p.Slow <= 0 {
		return false
	}
	windows := map[int]bool{}
	for _, w := range c.Engine.Windows() {
		windows[w] = true
	}
	return windows[p.Fast] && windows[p.Slow]
}

// SaveToFile writes the configuration as YAML, creating parent directories.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return b
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return f
}
