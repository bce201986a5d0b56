package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rewired-gh/walletrisk/internal/scoring"
)

// ErrInvalid marks configuration problems that must stop the run before any fetch.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete application configuration
type Config struct {
	Etherscan EtherscanConfig `mapstructure:"etherscan"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// EtherscanConfig holds block-explorer API configuration
type EtherscanConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	ChainID        int           `mapstructure:"chain_id"`
	PageSize       int           `mapstructure:"page_size"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// FetcherConfig controls fan-out across wallets
type FetcherConfig struct {
	Concurrency       int     `mapstructure:"concurrency"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// ScoringConfig holds the normalization method and feature weights
type ScoringConfig struct {
	Method  string        `mapstructure:"method"`
	Weights WeightsConfig `mapstructure:"weights"`
}

// WeightsConfig mirrors scoring.Weights for decoding
type WeightsConfig struct {
	AgeDays              float64 `mapstructure:"age_days"`
	TxCount              float64 `mapstructure:"tx_count"`
	AvgTxValue           float64 `mapstructure:"avg_tx_value"`
	UniqueCounterparties float64 `mapstructure:"unique_counterparties"`
}

// TelegramConfig holds Telegram digest configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	TopK           int           `mapstructure:"top_k"`
	MinScore       int           `mapstructure:"min_score"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds score history persistence configuration
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional file, a .env file and environment variables.
// An empty path skips the config file; defaults and the environment still apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("WALLETRISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The bare name is what Etherscan's own docs and most .env files use.
	if err := v.BindEnv("etherscan.api_key", "WALLETRISK_ETHERSCAN_API_KEY", "ETHERSCAN_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Etherscan defaults
	v.SetDefault("etherscan.api_key", "")
	v.SetDefault("etherscan.base_url", "https://api.etherscan.io/v2/api")
	v.SetDefault("etherscan.chain_id", 1)
	v.SetDefault("etherscan.page_size", 1000)
	v.SetDefault("etherscan.timeout", "30s")
	v.SetDefault("etherscan.max_retries", 3)
	v.SetDefault("etherscan.retry_delay_base", "1s")

	// Fetcher defaults; free tier allows 5 calls/sec
	v.SetDefault("fetcher.concurrency", 4)
	v.SetDefault("fetcher.requests_per_second", 5.0)

	// Scoring defaults
	w := scoring.DefaultWeights()
	v.SetDefault("scoring.method", string(scoring.MinMax))
	v.SetDefault("scoring.weights.age_days", w.AgeDays)
	v.SetDefault("scoring.weights.tx_count", w.TxCount)
	v.SetDefault("scoring.weights.avg_tx_value", w.AvgTxValue)
	v.SetDefault("scoring.weights.unique_counterparties", w.UniqueCounterparties)

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.top_k", 10)
	v.SetDefault("telegram.min_score", 667)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.db_path", "./data/walletrisk.db")
	v.SetDefault("storage.max_runs", 100)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Etherscan config
	if c.Etherscan.APIKey == "" {
		return invalid("etherscan.api_key is required (set ETHERSCAN_API_KEY)")
	}
	if c.Etherscan.BaseURL == "" {
		return invalid("etherscan.base_url is required")
	}
	if c.Etherscan.ChainID < 1 {
		return invalid("etherscan.chain_id must be at least 1")
	}
	if c.Etherscan.PageSize < 1 || c.Etherscan.PageSize > 10000 {
		return invalid("etherscan.page_size must be between 1 and 10000")
	}
	if c.Etherscan.Timeout < time.Second {
		return invalid("etherscan.timeout must be at least 1 second")
	}
	if c.Etherscan.MaxRetries < 0 {
		return invalid("etherscan.max_retries must not be negative")
	}
	if c.Etherscan.RetryDelayBase <= 0 {
		return invalid("etherscan.retry_delay_base must be positive")
	}

	// Validate Fetcher config
	if c.Fetcher.Concurrency < 1 || c.Fetcher.Concurrency > 32 {
		return invalid("fetcher.concurrency must be between 1 and 32")
	}
	if c.Fetcher.RequestsPerSecond <= 0 {
		return invalid("fetcher.requests_per_second must be positive")
	}

	// Validate Scoring config
	if _, err := scoring.ParseMethod(c.Scoring.Method); err != nil {
		return fmt.Errorf("%w: scoring.method: %w", ErrInvalid, err)
	}
	if err := c.Weights().Validate(); err != nil {
		return fmt.Errorf("%w: scoring.weights: %w", ErrInvalid, err)
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return invalid("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return invalid("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.TopK < 1 {
			return invalid("telegram.top_k must be at least 1")
		}
		if c.Telegram.MinScore < 0 || c.Telegram.MinScore > 1000 {
			return invalid("telegram.min_score must be between 0 and 1000")
		}
	}

	// Validate Storage config
	if c.Storage.Enabled && c.Storage.MaxRuns < 1 {
		return invalid("storage.max_runs must be at least 1")
	}

	return c.validateLogging()
}

// ValidateHistory checks only what reading stored runs needs. No API key is required.
func (c *Config) ValidateHistory() error {
	if c.Storage.DBPath == "" {
		return invalid("storage.db_path is required to read history")
	}
	return c.validateLogging()
}

func (c *Config) validateLogging() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return invalid("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return invalid("logging.format must be one of: json, text")
	}
	return nil
}

// Weights returns the configured feature weights
func (c *Config) Weights() scoring.Weights {
	return scoring.Weights{
		AgeDays:              c.Scoring.Weights.AgeDays,
		TxCount:              c.Scoring.Weights.TxCount,
		AvgTxValue:           c.Scoring.Weights.AvgTxValue,
		UniqueCounterparties: c.Scoring.Weights.UniqueCounterparties,
	}
}

// Method returns the configured normalization method. Call after Validate.
func (c *Config) Method() scoring.Method {
	m, _ := scoring.ParseMethod(c.Scoring.Method)
	return m
}
