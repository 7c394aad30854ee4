package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"MarketArchive/internal/model"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		Primary           string        `yaml:"primary"`
		YahooBaseURL      string        `yaml:"yahoo_base_url"`
		StooqBaseURL      string        `yaml:"stooq_base_url"`
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Proxy             string        `yaml:"proxy"`
	} `yaml:"data_source"`
	Output struct {
		Dir         string `yaml:"dir"`
		Format      string `yaml:"format"`
		Incremental bool   `yaml:"incremental"`
		OnError     string `yaml:"on_error"`
	} `yaml:"output"`
	Schedule struct {
		Cron         string `yaml:"cron"`
		LookbackDays int    `yaml:"lookback_days"`
		Watchlist    string `yaml:"watchlist"`
		Group        string `yaml:"group"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	LogLevel string `yaml:"log_level"`
}

// PathFromEnv returns CONFIG_PATH, or DefaultPath.
func PathFromEnv() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.DataSource.Proxy = v
	}
	if v := os.Getenv("MARKETARCHIVE_OUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("MARKETARCHIVE_FORMAT"); v != "" {
		cfg.Output.Format = v
	}
	if v := os.Getenv("MARKETARCHIVE_ON_ERROR"); v != "" {
		cfg.Output.OnError = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("CRON_REFRESH"); v != "" {
		cfg.Schedule.Cron = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Defaults
	if cfg.DataSource.Primary == "" {
		cfg.DataSource.Primary = string(model.SourceYahoo)
	}
	if cfg.DataSource.YahooBaseURL == "" {
		cfg.DataSource.YahooBaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.DataSource.StooqBaseURL == "" {
		cfg.DataSource.StooqBaseURL = "https://stooq.com"
	}
	if cfg.DataSource.Timeout == 0 {
		cfg.DataSource.Timeout = 20 * time.Second
	}
	if cfg.DataSource.RequestsPerSecond == 0 {
		cfg.DataSource.RequestsPerSecond = 2
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "data/prices"
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = string(model.FormatCSV)
	}
	if cfg.Output.OnError == "" {
		cfg.Output.OnError = string(model.PolicyWarn)
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "0 30 22 * * 1-5"
	}
	if cfg.Schedule.LookbackDays == 0 {
		cfg.Schedule.LookbackDays = 10
	}
	if cfg.Schedule.Watchlist == "" {
		cfg.Schedule.Watchlist = "configs/tickers.json"
	}
	if cfg.Schedule.Group == "" {
		cfg.Schedule.Group = "watchlist"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// Validate checks that all enumerated fields hold known values.
func (c *Config) Validate() error {
	switch c.DataSource.Primary {
	case string(model.SourceYahoo), string(model.SourceMock):
	default:
		return fmt.Errorf("data_source.primary must be yahoo or mock, got %q", c.DataSource.Primary)
	}
	if c.DataSource.RequestsPerSecond < 0 {
		return errors.New("data_source.requests_per_second must not be negative")
	}
	if _, err := c.Format(); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if _, err := c.ErrorPolicy(); err != nil {
		return fmt.Errorf("output.on_error: %w", err)
	}
	if strings.HasSuffix(strings.ToLower(c.Output.Dir), ".csv") {
		return fmt.Errorf("output.dir must be a directory, got %q", c.Output.Dir)
	}
	if c.Schedule.LookbackDays < 0 {
		return errors.New("schedule.lookback_days must not be negative")
	}
	return nil
}

// Format returns the parsed output format.
func (c *Config) Format() (model.Format, error) {
	return model.ParseFormat(c.Output.Format)
}

// ErrorPolicy returns the parsed fallback error policy.
func (c *Config) ErrorPolicy() (model.ErrorPolicy, error) {
	return model.ParseErrorPolicy(c.Output.OnError)
}

// TelegramEnabled reports whether run summaries can be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
