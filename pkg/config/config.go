package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "IGCRAWLER_"

// Config holds all configuration options for the crawler
type Config struct {
	// Browser automation settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Pagination and extraction policy
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Throttle for browser actions and media fetches
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// File sinks
	Output OutputConfig `yaml:"output" json:"output"`

	// Relational sink
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Media download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BrowserConfig controls the automated browser
type BrowserConfig struct {
	Headless      bool          `yaml:"headless" json:"headless"`
	ExecPath      string        `yaml:"exec_path" json:"exec_path"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent"`
	ActionTimeout time.Duration `yaml:"action_timeout" json:"action_timeout"`
	LoginTimeout  time.Duration `yaml:"login_timeout" json:"login_timeout"`
	BaseURL       string        `yaml:"base_url" json:"base_url"`
	// CloseSelector locates the detail view close button; Escape is used when it is missing
	CloseSelector string `yaml:"close_selector" json:"close_selector"`
}

// CrawlConfig holds the pagination controller settings
type CrawlConfig struct {
	// Target of 0 collects every post the profile header reports
	Target           int           `yaml:"target" json:"target"`
	Detail           bool          `yaml:"detail" json:"detail"`
	BackoffUnit      time.Duration `yaml:"backoff_unit" json:"backoff_unit"`
	TimeoutBudget    int           `yaml:"timeout_budget" json:"timeout_budget"`
	RecoveryOffset   int           `yaml:"recovery_offset" json:"recovery_offset"`
	DetailRetryLimit int           `yaml:"detail_retry_limit" json:"detail_retry_limit"`
	DetailPoll       time.Duration `yaml:"detail_poll" json:"detail_poll"`
	DetailWait       time.Duration `yaml:"detail_wait" json:"detail_wait"`
	OwnerOnly        bool          `yaml:"owner_only" json:"owner_only"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	ActionsPerMinute int `yaml:"actions_per_minute" json:"actions_per_minute"`
	BurstSize        int `yaml:"burst_size" json:"burst_size"`
}

// OutputConfig holds file sink configuration
type OutputConfig struct {
	Directory    string `yaml:"directory" json:"directory"`
	JSONLines    bool   `yaml:"jsonl" json:"jsonl"`
	Snapshot     bool   `yaml:"snapshot" json:"snapshot"`
	SnapshotName string `yaml:"snapshot_name" json:"snapshot_name"`
}

// DatabaseConfig holds the Postgres sink configuration. An empty DSN disables it.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn" json:"dsn"`
	Schema   string `yaml:"schema" json:"schema"`
	MaxConns int32  `yaml:"max_conns" json:"max_conns"`
	Migrate  bool   `yaml:"migrate" json:"migrate"`
}

// DownloadConfig holds media download configuration
type DownloadConfig struct {
	Enabled             bool          `yaml:"enabled" json:"enabled"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	RetryAttempts       int           `yaml:"retry_attempts" json:"retry_attempts"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:      true,
			UserAgent:     "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ActionTimeout: 10 * time.Second,
			LoginTimeout:  60 * time.Second,
			BaseURL:       "https://www.instagram.com",
		},
		Crawl: CrawlConfig{
			Target:           0,
			BackoffUnit:      time.Second,
			TimeoutBudget:    600,
			RecoveryOffset:   600,
			DetailRetryLimit: 10,
			DetailPoll:       500 * time.Millisecond,
			DetailWait:       5 * time.Second,
			OwnerOnly:        true,
		},
		RateLimit: RateLimitConfig{
			ActionsPerMinute: 120,
			BurstSize:        5,
		},
		Output: OutputConfig{
			Directory:    "./output",
			JSONLines:    true,
			Snapshot:     true,
			SnapshotName: "{handle}.json",
		},
		Database: DatabaseConfig{
			Schema:   "public",
			MaxConns: 4,
			Migrate:  true,
		},
		Download: DownloadConfig{
			Enabled:             false,
			ConcurrentDownloads: 3,
			DownloadTimeout:     30 * time.Second,
			RetryAttempts:       3,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

// BudgetDuration returns the timeout budget expressed in wall-clock time
func (c CrawlConfig) BudgetDuration() time.Duration {
	return time.Duration(c.TimeoutBudget) * c.BackoffUnit
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := getenv("HEADLESS"); v != "" {
		c.Browser.Headless = strings.EqualFold(v, "true")
	}
	if v := getenv("CHROME_PATH"); v != "" {
		c.Browser.ExecPath = v
	}
	if v := getenv("USER_AGENT"); v != "" {
		c.Browser.UserAgent = v
	}

	if v := getenv("TARGET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTARGET: %w", envPrefix, err))
		} else {
			c.Crawl.Target = n
		}
	}
	if v := getenv("DETAIL"); v != "" {
		c.Crawl.Detail = strings.EqualFold(v, "true")
	}
	if v := getenv("TIMEOUT_BUDGET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTIMEOUT_BUDGET: %w", envPrefix, err))
		} else {
			c.Crawl.TimeoutBudget = n
		}
	}
	if v := getenv("BACKOFF_UNIT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sBACKOFF_UNIT: %w", envPrefix, err))
		} else {
			c.Crawl.BackoffUnit = d
		}
	}

	if v := getenv("ACTIONS_PER_MINUTE"); v != "" {
		var val int
		fmt.Sscanf(v, "%d", &val)
		if val > 0 {
			c.RateLimit.ActionsPerMinute = val
		}
	}

	if v := getenv("OUTPUT_DIR"); v != "" {
		c.Output.Directory = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := getenv("DATABASE_SCHEMA"); v != "" {
		c.Database.Schema = v
	}

	if v := getenv("DOWNLOAD_MEDIA"); v != "" {
		c.Download.Enabled = strings.EqualFold(v, "true")
	}
	if v := getenv("CONCURRENT_DOWNLOADS"); v != "" {
		var val int
		fmt.Sscanf(v, "%d", &val)
		if val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

func getenv(name string) string {
	return os.Getenv(envPrefix + name)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".igcrawler.yaml",
		".igcrawler.yml",
		filepath.Join(home, ".config", "igcrawler", "config.yaml"),
		filepath.Join(home, ".config", "igcrawler", "config.yml"),
		filepath.Join(home, ".igcrawler.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Browser.ActionTimeout <= 0 {
		errs = append(errs, errors.New("browser action timeout must be positive"))
	}

	if c.Crawl.Target < 0 {
		errs = append(errs, errors.New("crawl target cannot be negative"))
	}
	if c.Crawl.BackoffUnit <= 0 {
		errs = append(errs, errors.New("backoff unit must be positive"))
	}
	if c.Crawl.TimeoutBudget <= 0 {
		errs = append(errs, errors.New("timeout budget must be positive"))
	}
	if c.Crawl.RecoveryOffset < 0 {
		errs = append(errs, errors.New("recovery offset cannot be negative"))
	}
	if c.Crawl.DetailRetryLimit <= 0 {
		errs = append(errs, errors.New("detail retry limit must be positive"))
	}
	if c.Crawl.DetailWait <= 0 {
		errs = append(errs, errors.New("detail wait must be positive"))
	}

	if c.RateLimit.ActionsPerMinute <= 0 {
		errs = append(errs, errors.New("actions per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.Snapshot && c.Output.SnapshotName == "" {
		errs = append(errs, errors.New("snapshot name is required when snapshots are enabled"))
	}

	if c.Database.DSN != "" && c.Database.MaxConns <= 0 {
		errs = append(errs, errors.New("database max conns must be positive"))
	}

	if c.Download.Enabled {
		if c.Download.ConcurrentDownloads <= 0 {
			errs = append(errs, errors.New("concurrent downloads must be positive"))
		}
		if c.Download.ConcurrentDownloads > 10 {
			errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
		}
		if c.Download.DownloadTimeout <= 0 {
			errs = append(errs, errors.New("download timeout must be positive"))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["count"].(int); ok {
		c.Crawl.Target = v
	}
	if v, ok := flags["detail"].(bool); ok {
		c.Crawl.Detail = v
	}
	if v, ok := flags["timeout-budget"].(int); ok && v > 0 {
		c.Crawl.TimeoutBudget = v
	}
	if v, ok := flags["backoff-unit"].(time.Duration); ok && v > 0 {
		c.Crawl.BackoffUnit = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["db"].(string); ok && v != "" {
		c.Database.DSN = v
	}
	if v, ok := flags["download-media"].(bool); ok {
		c.Download.Enabled = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["rate-limit"].(int); ok && v > 0 {
		c.RateLimit.ActionsPerMinute = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment (.env included) > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	home := os.Getenv("HOME")
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".igcrawler.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
