// Package config provides configuration management for the advisor.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "nifty-advisor/internal/errors"
	"nifty-advisor/internal/logging"
)

// AppName names the config directory and env prefix.
const AppName = "nifty-advisor"

// Environment variables that override file settings.
const (
	EnvSymbol            = "NIFTY_ADVISOR_SYMBOL"
	EnvBlockWeeklyExpiry = "NIFTY_ADVISOR_BLOCK_WEEKLY_EXPIRY"
	EnvServerAddr        = "NIFTY_ADVISOR_SERVER_ADDR"
	EnvLogLevel          = "NIFTY_ADVISOR_LOG_LEVEL"
	EnvJournalPath       = "NIFTY_ADVISOR_JOURNAL_PATH"
)

// Config holds all application configuration.
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`
	Server   ServerConfig   `mapstructure:"server"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	UI       UIConfig       `mapstructure:"ui"`

	// File is the config file that was read, empty when defaults were used.
	File string `mapstructure:"-"`
}

// AnalysisConfig holds pipeline settings.
type AnalysisConfig struct {
	BlockWeeklyExpiry bool   `mapstructure:"block_weekly_expiry"`
	StrictValidation  bool   `mapstructure:"strict_validation"`
	WeightsProfile    string `mapstructure:"weights_profile"`
}

// FetcherConfig holds NSE client settings.
type FetcherConfig struct {
	Symbol            string        `mapstructure:"symbol"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	PrimeSession      bool          `mapstructure:"prime_session"`
	PrimeDelay        time.Duration `mapstructure:"prime_delay"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

// JournalConfig holds signal journal settings.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// BacktestConfig holds trade simulator settings.
type BacktestConfig struct {
	InitialCapital    float64 `mapstructure:"initial_capital"`
	StopLoss          float64 `mapstructure:"stop_loss"`
	Target            float64 `mapstructure:"target"`
	Quantity          int     `mapstructure:"quantity"`
	RespectSafetyGate bool    `mapstructure:"respect_safety_gate"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
	TimeFormat   string `mapstructure:"time_format"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", AppName)
	}
	return filepath.Join(home, ".config", AppName)
}

// ConfigFilePath resolves the config file for a --config value, which may
// name a directory or a .toml file.
func ConfigFilePath(location string) string {
	if location == "" {
		location = DefaultConfigDir()
	}
	if strings.EqualFold(filepath.Ext(location), ".toml") {
		return location
	}
	return filepath.Join(location, "config.toml")
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	// Unmarshal of defaults only fails on programmer error.
	if err := v.Unmarshal(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the config file at location (a directory or a .toml file).
// A missing file is created from the commented template and defaults are
// used. .env files are loaded before environment overrides are applied.
func Load(location string) (*Config, error) {
	path := ConfigFilePath(location)
	dir := filepath.Dir(path)

	// .env values never replace variables already set in the environment.
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, dir)
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	cfg := &Config{}
	if err := v.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := WriteTemplate(path); err != nil {
			return nil, err
		}
	} else {
		cfg.File = path
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("analysis.block_weekly_expiry", true)
	v.SetDefault("analysis.strict_validation", true)
	v.SetDefault("analysis.weights_profile", "")

	v.SetDefault("fetcher.symbol", "NIFTY")
	v.SetDefault("fetcher.base_url", "https://www.nseindia.com")
	v.SetDefault("fetcher.timeout", 10*time.Second)
	v.SetDefault("fetcher.max_retries", 3)
	v.SetDefault("fetcher.requests_per_minute", 20)
	v.SetDefault("fetcher.prime_session", true)
	v.SetDefault("fetcher.prime_delay", 1500*time.Millisecond)

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", filepath.Join(dir, "journal.db"))

	v.SetDefault("backtest.initial_capital", 100000.0)
	v.SetDefault("backtest.stop_loss", 0.20)
	v.SetDefault("backtest.target", 0.50)
	v.SetDefault("backtest.quantity", 1)
	v.SetDefault("backtest.respect_safety_gate", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(dir, "logs", "advisor.log"))
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "02-Jan-2006")
	v.SetDefault("ui.time_format", "15:04:05")
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvSymbol); v != "" {
		cfg.Fetcher.Symbol = strings.ToUpper(strings.TrimSpace(v))
	}
	if v := os.Getenv(EnvBlockWeeklyExpiry); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrConfigInvalid,
				apperrors.NewValidationError(EnvBlockWeeklyExpiry, v, "must be a boolean"))
		}
		cfg.Analysis.BlockWeeklyExpiry = b
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvJournalPath); v != "" {
		cfg.Journal.Path = v
	}
	return nil
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	check := func(ok bool, field string, value interface{}, msg string) error {
		if ok {
			return nil
		}
		return fmt.Errorf("%w: %w", apperrors.ErrConfigInvalid, apperrors.NewValidationError(field, value, msg))
	}

	checks := []error{
		check(strings.TrimSpace(c.Fetcher.Symbol) != "", "fetcher.symbol", c.Fetcher.Symbol, "must not be empty"),
		check(strings.HasPrefix(c.Fetcher.BaseURL, "http://") || strings.HasPrefix(c.Fetcher.BaseURL, "https://"),
			"fetcher.base_url", c.Fetcher.BaseURL, "must be an http(s) URL"),
		check(c.Fetcher.Timeout > 0, "fetcher.timeout", c.Fetcher.Timeout, "must be positive"),
		check(c.Fetcher.MaxRetries >= 1, "fetcher.max_retries", c.Fetcher.MaxRetries, "must be >= 1"),
		check(c.Fetcher.RequestsPerMinute >= 0, "fetcher.requests_per_minute", c.Fetcher.RequestsPerMinute, "must be >= 0"),
		check(c.Fetcher.PrimeDelay >= 0, "fetcher.prime_delay", c.Fetcher.PrimeDelay, "must be >= 0"),
		check(c.Server.Addr != "", "server.addr", c.Server.Addr, "must not be empty"),
		check(!c.Journal.Enabled || c.Journal.Path != "", "journal.path", c.Journal.Path, "required when the journal is enabled"),
		check(c.Backtest.InitialCapital >= 0, "backtest.initial_capital", c.Backtest.InitialCapital, "must be >= 0"),
		check(c.Backtest.StopLoss > 0 && c.Backtest.StopLoss <= 1, "backtest.stop_loss", c.Backtest.StopLoss, "must be in (0, 1]"),
		check(c.Backtest.Target > 0, "backtest.target", c.Backtest.Target, "must be > 0"),
		check(c.Backtest.Quantity >= 1, "backtest.quantity", c.Backtest.Quantity, "must be >= 1"),
		check(logging.ValidLevel(c.Logging.Level), "logging.level", c.Logging.Level, "must be debug, info, warn or error"),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}
