package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rewired-gh/marketpulse/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Universe   UniverseConfig   `mapstructure:"universe"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Learner    LearnerConfig    `mapstructure:"learner"`
	MarketData MarketDataConfig `mapstructure:"marketdata"`
	News       NewsConfig       `mapstructure:"news"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// UniverseConfig lists the tracked tickers. Aliases and display names are
// case-sensitive, so they are read from File rather than the main config.
type UniverseConfig struct {
	Portfolio  []string          `mapstructure:"portfolio"`
	Watchlist  []string          `mapstructure:"watchlist"`
	Candidates []string          `mapstructure:"candidates"`
	Benchmark  string            `mapstructure:"benchmark"`
	VIX        string            `mapstructure:"vix"`
	File       string            `mapstructure:"file"`
	Aliases    map[string]string `mapstructure:"-"`
	Names      map[string]string `mapstructure:"-"`
}

// ScoringConfig holds composite score and alerting policy
type ScoringConfig struct {
	Weights        map[string]float64 `mapstructure:"weights"`
	AlertThreshold float64            `mapstructure:"alert_threshold"`
	TopN           int                `mapstructure:"top_n"`
	Timezone       string             `mapstructure:"timezone"`
}

// MonitorConfig holds snapshot engine tuning
type MonitorConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	NewsLimit   int    `mapstructure:"news_limit"`
	RSPeriod    string `mapstructure:"rs_period"`
}

// LearnerConfig holds weekly weight learning parameters
type LearnerConfig struct {
	MaxTickers  int     `mapstructure:"max_tickers"`
	MinSamples  int     `mapstructure:"min_samples"`
	Period      string  `mapstructure:"period"`
	MinFixed    float64 `mapstructure:"min_fixed_weight"`
	MaxFixed    float64 `mapstructure:"max_fixed_weight"`
	MaxShift    float64 `mapstructure:"max_shift"`
	ShiftFactor float64 `mapstructure:"shift_factor"`
}

// MarketDataConfig holds price provider configuration
type MarketDataConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelayBase    time.Duration `mapstructure:"retry_delay_base"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown"`
}

// NewsConfig holds RSS feed configuration
type NewsConfig struct {
	Feeds             []FeedConfig  `mapstructure:"feeds"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type FeedConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds state file configuration
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// ScheduleConfig holds cron expressions for serve mode
type ScheduleConfig struct {
	Alerts  string `mapstructure:"alerts"`
	Morning string `mapstructure:"morning"`
	Evening string `mapstructure:"evening"`
	Learn   string `mapstructure:"learn"`
}

// ServerConfig holds the status server configuration
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// UniverseFile is the layout of the optional universe YAML file.
type UniverseFile struct {
	Portfolio  []string          `yaml:"portfolio"`
	Watchlist  []string          `yaml:"watchlist"`
	Candidates []string          `yaml:"candidates"`
	Aliases    map[string]string `yaml:"aliases"`
	Names      map[string]string `yaml:"names"`
}

// Load reads configuration from file and environment variables.
// A .env file next to the config (or in the working directory) is loaded first.
func Load(path string) (*Config, error) {
	loadDotEnv(path)

	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. MARKETPULSE_TELEGRAM_BOT_TOKEN
	v.SetEnvPrefix("MARKETPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Universe.File != "" {
		file := cfg.Universe.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(filepath.Dir(path), file)
		}
		if err := cfg.Universe.mergeFile(file); err != nil {
			return nil, err
		}
	}
	cfg.Universe.normalize()

	return &cfg, nil
}

func loadDotEnv(configPath string) {
	candidates := []string{filepath.Join(filepath.Dir(configPath), ".env"), ".env"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			// existing environment variables win over the file
			_ = godotenv.Load(p)
		}
	}
}

// mergeFile appends the file's lists to the inline lists and takes its aliases and names.
func (u *UniverseConfig) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read universe file: %w", err)
	}
	var f UniverseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse universe file: %w", err)
	}
	u.Portfolio = append(u.Portfolio, f.Portfolio...)
	u.Watchlist = append(u.Watchlist, f.Watchlist...)
	u.Candidates = append(u.Candidates, f.Candidates...)
	if u.Aliases == nil {
		u.Aliases = make(map[string]string)
	}
	for k, v := range f.Aliases {
		u.Aliases[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	if u.Names == nil {
		u.Names = make(map[string]string)
	}
	for k, v := range f.Names {
		u.Names[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return nil
}

func (u *UniverseConfig) normalize() {
	u.Portfolio = upperAll(u.Portfolio)
	u.Watchlist = upperAll(u.Watchlist)
	u.Candidates = upperAll(u.Candidates)
	u.Benchmark = strings.ToUpper(strings.TrimSpace(u.Benchmark))
	u.VIX = strings.ToUpper(strings.TrimSpace(u.VIX))
}

func upperAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Universe defaults
	v.SetDefault("universe.portfolio", []string{})
	v.SetDefault("universe.watchlist", []string{})
	v.SetDefault("universe.candidates", []string{})
	v.SetDefault("universe.benchmark", "SPY")
	v.SetDefault("universe.vix", "^VIX")
	v.SetDefault("universe.file", "")

	// Scoring defaults
	v.SetDefault("scoring.weights", map[string]float64{
		models.CategoryMomentum:    0.25,
		models.CategoryRelStrength: 0.25,
		models.CategoryVolume:      0.20,
		models.CategoryCatalyst:    0.15,
		models.CategoryRegime:      0.15,
	})
	v.SetDefault("scoring.alert_threshold", 3.0)
	v.SetDefault("scoring.top_n", 5)
	v.SetDefault("scoring.timezone", "Europe/Berlin")

	// Monitor defaults
	v.SetDefault("monitor.concurrency", 4)
	v.SetDefault("monitor.news_limit", 5)
	v.SetDefault("monitor.rs_period", "3mo")

	// Learner defaults
	v.SetDefault("learner.max_tickers", 40)
	v.SetDefault("learner.min_samples", 12)
	v.SetDefault("learner.period", "9mo")
	v.SetDefault("learner.min_fixed_weight", 0.10)
	v.SetDefault("learner.max_fixed_weight", 0.40)
	v.SetDefault("learner.max_shift", 0.12)
	v.SetDefault("learner.shift_factor", 0.25)

	// Market data defaults
	v.SetDefault("marketdata.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("marketdata.timeout", "10s")
	v.SetDefault("marketdata.max_retries", 3)
	v.SetDefault("marketdata.retry_delay_base", "1s")
	v.SetDefault("marketdata.requests_per_second", 4.0)
	v.SetDefault("marketdata.burst", 4)
	v.SetDefault("marketdata.breaker_failures", 5)
	v.SetDefault("marketdata.breaker_cooldown", "1m")

	// News defaults
	v.SetDefault("news.timeout", "8s")
	v.SetDefault("news.requests_per_second", 2.0)

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.data_dir", "./data")

	// Schedule defaults (seconds field first)
	v.SetDefault("schedule.alerts", "0 */15 9-22 * * MON-FRI")
	v.SetDefault("schedule.morning", "0 30 8 * * MON-FRI")
	v.SetDefault("schedule.evening", "0 15 22 * * MON-FRI")
	v.SetDefault("schedule.learn", "0 0 10 * * SUN")

	// Server defaults
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8089)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Universe config
	if len(c.Universe.Portfolio)+len(c.Universe.Watchlist)+len(c.Universe.Candidates) == 0 {
		return errors.New("universe must contain at least one ticker in portfolio, watchlist or candidates")
	}
	if c.Universe.Benchmark == "" {
		return fmt.Errorf("universe.benchmark is required")
	}
	if c.Universe.VIX == "" {
		return fmt.Errorf("universe.vix is required")
	}

	// Validate Scoring config
	for k, w := range c.Scoring.Weights {
		if !isCategory(k) {
			return fmt.Errorf("scoring.weights has unknown category %q", k)
		}
		if w < 0 {
			return fmt.Errorf("scoring.weights.%s must not be negative", k)
		}
	}
	if c.Scoring.AlertThreshold <= 0 {
		return fmt.Errorf("scoring.alert_threshold must be positive")
	}
	if c.Scoring.TopN < 1 {
		return fmt.Errorf("scoring.top_n must be at least 1")
	}
	if _, err := time.LoadLocation(c.Scoring.Timezone); err != nil {
		return fmt.Errorf("scoring.timezone is invalid: %w", err)
	}

	// Validate Monitor config
	if c.Monitor.Concurrency < 1 {
		return fmt.Errorf("monitor.concurrency must be at least 1")
	}
	if c.Monitor.NewsLimit < 0 {
		return fmt.Errorf("monitor.news_limit must not be negative")
	}

	// Validate Learner config
	if c.Learner.MaxTickers < 1 {
		return fmt.Errorf("learner.max_tickers must be at least 1")
	}
	if c.Learner.MinSamples < 3 {
		return fmt.Errorf("learner.min_samples must be at least 3")
	}
	if c.Learner.MinFixed < 0 || c.Learner.MaxFixed > 1 || c.Learner.MinFixed > c.Learner.MaxFixed {
		return fmt.Errorf("learner fixed weight band must satisfy 0 <= min <= max <= 1")
	}
	if c.Learner.MaxShift < 0 || c.Learner.MaxShift > 1 || c.Learner.ShiftFactor < 0 || c.Learner.ShiftFactor > 1 {
		return fmt.Errorf("learner.max_shift and learner.shift_factor must be between 0 and 1")
	}

	// Validate MarketData config
	if c.MarketData.BaseURL == "" {
		return fmt.Errorf("marketdata.base_url is required")
	}
	if c.MarketData.Timeout <= 0 {
		return fmt.Errorf("marketdata.timeout must be positive")
	}

	// Validate News config
	for i, f := range c.News.Feeds {
		if f.URL == "" {
			return fmt.Errorf("news.feeds[%d].url is required", i)
		}
	}

	// Validate Storage config
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}

	// Validate Server config
	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// TelegramReady reports whether delivery is enabled and has credentials.
// Missing credentials are not a validation error; delivery is skipped.
func (c *Config) TelegramReady() bool {
	return c.Telegram.Enabled && c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func isCategory(name string) bool {
	for _, c := range models.Categories {
		if c == name {
			return true
		}
	}
	return false
}

// DefaultWeights returns the configured weights normalized to sum 1.0.
func (c *Config) DefaultWeights() models.WeightVector {
	return models.WeightVector(c.Scoring.Weights).Normalized()
}

// Location returns the configured report timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scoring.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
