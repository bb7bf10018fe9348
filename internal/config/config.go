package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"btc-predictor/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Producer ModelConfig    `mapstructure:"producer"`
	Reviewer ModelConfig    `mapstructure:"reviewer"`
	Binance  BinanceConfig  `mapstructure:"binance"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// EngineConfig governs the prediction lifecycle.
type EngineConfig struct {
	Timeframes           []string      `mapstructure:"timeframes"`
	StrongThreshold      float64       `mapstructure:"strong_threshold"`
	ExtremeThreshold     float64       `mapstructure:"extreme_threshold"`
	FlatEpsilonPct       float64       `mapstructure:"flat_epsilon_pct"`
	MetaInterval         int64         `mapstructure:"meta_interval"`
	ContextLearnings     int           `mapstructure:"context_learnings"`
	HistoryWindow        int           `mapstructure:"history_window"`
	MaxModelAttempts     uint64        `mapstructure:"max_model_attempts"`
	ResolveRetryInterval time.Duration `mapstructure:"resolve_retry_interval"`
	AlignToBucket        bool          `mapstructure:"align_to_bucket"`
	StartupDelay         time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockBase     int64         `mapstructure:"advisory_lock_base"`
}

// ModelConfig points at one OpenAI-compatible chat endpoint. Producer and
// reviewer get separate sections so they stay independent models.
type ModelConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// BinanceConfig covers market data access.
type BinanceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Symbol         string        `mapstructure:"symbol"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RequestsPerSec int           `mapstructure:"requests_per_sec"`
}

// AlertingConfig defines operator alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram channel parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Timeframe is one parsed prediction horizon.
type Timeframe struct {
	Name     string
	Duration time.Duration
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BTCPREDICTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "btcpredictor")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("engine.timeframes", []string{"5m", "15m", "1h"})
	v.SetDefault("engine.strong_threshold", 0.70)
	v.SetDefault("engine.extreme_threshold", 0.80)
	v.SetDefault("engine.flat_epsilon_pct", 0.05)
	v.SetDefault("engine.meta_interval", int64(100))
	v.SetDefault("engine.context_learnings", 10)
	v.SetDefault("engine.history_window", 288)
	v.SetDefault("engine.max_model_attempts", uint64(4))
	v.SetDefault("engine.resolve_retry_interval", "15s")
	v.SetDefault("engine.align_to_bucket", true)
	v.SetDefault("engine.startup_delay", "0s")
	v.SetDefault("engine.advisory_lock_base", int64(0x62746370))

	v.SetDefault("producer.model", "gpt-4o")
	v.SetDefault("producer.max_tokens", 800)
	v.SetDefault("reviewer.model", "gpt-4o-mini")
	v.SetDefault("reviewer.max_tokens", 800)

	v.SetDefault("binance.base_url", "https://api.binance.com/api/v3")
	v.SetDefault("binance.symbol", "BTCUSDT")
	v.SetDefault("binance.request_timeout", "10s")
	v.SetDefault("binance.requests_per_sec", 5)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if len(c.Engine.Timeframes) == 0 {
		return fmt.Errorf("engine.timeframes must not be empty")
	}
	if _, err := c.ParsedTimeframes(); err != nil {
		return err
	}
	if c.Engine.StrongThreshold <= 0 || c.Engine.StrongThreshold > 1 {
		return fmt.Errorf("engine.strong_threshold must be in (0, 1]")
	}
	if c.Engine.ExtremeThreshold <= 0 || c.Engine.ExtremeThreshold > 1 {
		return fmt.Errorf("engine.extreme_threshold must be in (0, 1]")
	}
	if c.Engine.FlatEpsilonPct < 0 {
		return fmt.Errorf("engine.flat_epsilon_pct cannot be negative")
	}
	if c.Engine.MetaInterval <= 0 {
		return fmt.Errorf("engine.meta_interval must be greater than zero")
	}
	if c.Engine.ContextLearnings <= 0 {
		return fmt.Errorf("engine.context_learnings must be greater than zero")
	}
	if c.Engine.HistoryWindow < 12 {
		return fmt.Errorf("engine.history_window must be at least 12 candles")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ParsedTimeframes converts the configured timeframe names into durations.
// Names double as Binance kline intervals, so they must stay in the
// "5m"/"15m"/"1h" style.
func (c *Config) ParsedTimeframes() ([]Timeframe, error) {
	parsed := make([]Timeframe, 0, len(c.Engine.Timeframes))
	for _, name := range c.Engine.Timeframes {
		d, err := time.ParseDuration(name)
		if err != nil {
			return nil, fmt.Errorf("engine.timeframes: invalid timeframe %q: %w", name, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("engine.timeframes: timeframe %q must be positive", name)
		}
		parsed = append(parsed, Timeframe{Name: name, Duration: d})
	}
	return parsed, nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
