package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/camuig/sol-tracker/internal/strategy"
)

type Config struct {
	Bot      BotConfig         `yaml:"bot"`
	Trading  TradingConfig     `yaml:"trading"`
	Strategy strategy.Strategy `yaml:"strategy"`
	Jupiter  JupiterConfig     `yaml:"jupiter"`
	Helius   HeliusConfig      `yaml:"helius"`
	Price    PriceConfig       `yaml:"price"`
	Redis    RedisConfig       `yaml:"redis"`
	Database DatabaseConfig    `yaml:"database"`
	Telegram TelegramConfig    `yaml:"telegram"`
	Discord  DiscordConfig     `yaml:"discord"`
	Notify   NotifyConfig      `yaml:"notify"`
	Web      WebConfig         `yaml:"web"`
	Logging  LoggingConfig     `yaml:"logging"`
}

type BotConfig struct {
	Name string `yaml:"name"`
}

type TradingConfig struct {
	Interval           string  `yaml:"interval"`
	IncludeFeesInPnL   bool    `yaml:"include_fees_in_pnl"`
	SlippageBps        int     `yaml:"slippage_bps"`
	MaxSellAttempts    int     `yaml:"max_sell_attempts"`
	Concurrency        int     `yaml:"concurrency"`
	DustBalance        float64 `yaml:"dust_balance"`
	Paper              bool    `yaml:"paper"`
	PaperNetworkFeeSOL float64 `yaml:"paper_network_fee_sol"`
}

type JupiterConfig struct {
	QuoteURL       string `yaml:"quote_url"`
	PriceURL       string `yaml:"price_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

type HeliusConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

type PriceConfig struct {
	MaxAgeSeconds int `yaml:"max_age_seconds"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

type NotifyConfig struct {
	Events []string `yaml:"events"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// .env is optional
	_ = godotenv.Load()

	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and defaults, and validates.
func Parse(data []byte) (*Config, error) {
	// Fields where zero is a meaningful setting are seeded before decoding.
	cfg := &Config{Trading: TradingConfig{
		SlippageBps: 200,
		DustBalance: 1e-6,
	}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Jupiter.APIKey, "SOLTRACKER_JUPITER_API_KEY")
	setStr(&cfg.Helius.APIKey, "SOLTRACKER_HELIUS_API_KEY")
	setStr(&cfg.Redis.Addr, "SOLTRACKER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SOLTRACKER_REDIS_PASSWORD")
	setStr(&cfg.Telegram.BotToken, "SOLTRACKER_TELEGRAM_BOT_TOKEN")
	setInt64(&cfg.Telegram.ChatID, "SOLTRACKER_TELEGRAM_CHAT_ID")
	setStr(&cfg.Discord.WebhookURL, "SOLTRACKER_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Database.Path, "SOLTRACKER_DATABASE_PATH")
	setStr(&cfg.Logging.Level, "SOLTRACKER_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDefaults(cfg *Config) {
	if cfg.Bot.Name == "" {
		cfg.Bot.Name = "tracker"
	}
	if cfg.Trading.Interval == "" {
		cfg.Trading.Interval = "5s"
	}
	if cfg.Trading.MaxSellAttempts == 0 {
		cfg.Trading.MaxSellAttempts = 5
	}
	if cfg.Trading.Concurrency == 0 {
		cfg.Trading.Concurrency = 8
	}
	if cfg.Trading.PaperNetworkFeeSOL == 0 {
		cfg.Trading.PaperNetworkFeeSOL = 0.000005
	}
	if cfg.Strategy.Name == "" {
		cfg.Strategy.Name = "default"
	}
	if cfg.Jupiter.QuoteURL == "" {
		cfg.Jupiter.QuoteURL = "https://api.jup.ag/swap/v1/quote"
	}
	if cfg.Jupiter.PriceURL == "" {
		cfg.Jupiter.PriceURL = "https://api.jup.ag/price/v3"
	}
	if cfg.Jupiter.TimeoutSeconds == 0 {
		cfg.Jupiter.TimeoutSeconds = 10
	}
	if cfg.Jupiter.MaxRetries == 0 {
		cfg.Jupiter.MaxRetries = 3
	}
	if cfg.Helius.BaseURL == "" {
		cfg.Helius.BaseURL = "https://api.helius.xyz"
	}
	if cfg.Helius.TimeoutSeconds == 0 {
		cfg.Helius.TimeoutSeconds = 15
	}
	if cfg.Helius.MaxRetries == 0 {
		cfg.Helius.MaxRetries = 3
	}
	if cfg.Price.MaxAgeSeconds == 0 {
		cfg.Price.MaxAgeSeconds = 30
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/sol-tracker.db"
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Trading.Interval); err != nil {
		return fmt.Errorf("invalid trading.interval %q: %w", c.Trading.Interval, err)
	}
	if c.Trading.SlippageBps < 0 || c.Trading.SlippageBps > 10000 {
		return fmt.Errorf("trading.slippage_bps must be within [0,10000], got %d", c.Trading.SlippageBps)
	}
	if c.Trading.MaxSellAttempts < 1 {
		return fmt.Errorf("trading.max_sell_attempts must be positive")
	}
	if c.Trading.Concurrency < 0 {
		return fmt.Errorf("trading.concurrency must not be negative, got %d", c.Trading.Concurrency)
	}
	if c.Trading.DustBalance < 0 {
		return fmt.Errorf("trading.dust_balance must not be negative, got %g", c.Trading.DustBalance)
	}
	if c.Trading.PaperNetworkFeeSOL < 0 {
		return fmt.Errorf("trading.paper_network_fee_sol must not be negative, got %g", c.Trading.PaperNetworkFeeSOL)
	}
	if err := c.Strategy.Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if len(c.Strategy.StopLoss)+len(c.Strategy.TakeProfit) == 0 {
		return fmt.Errorf("strategy needs at least one stop_loss or take_profit tier")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Discord.Enabled && c.Discord.WebhookURL == "" {
		return fmt.Errorf("discord.webhook_url is required when discord is enabled")
	}
	return nil
}

func (c *Config) TradingInterval() time.Duration {
	d, _ := time.ParseDuration(c.Trading.Interval)
	return d
}

func (c *Config) JupiterTimeout() time.Duration {
	return time.Duration(c.Jupiter.TimeoutSeconds) * time.Second
}

func (c *Config) HeliusTimeout() time.Duration {
	return time.Duration(c.Helius.TimeoutSeconds) * time.Second
}

func (c *Config) PriceMaxAge() time.Duration {
	return time.Duration(c.Price.MaxAgeSeconds) * time.Second
}

func (c *Config) Mode() string {
	if c.Trading.Paper {
		return "PAPER"
	}
	return "SIGNAL"
}
