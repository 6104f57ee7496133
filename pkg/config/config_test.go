package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Browser.Headless)
	assert.NotEmpty(t, cfg.Browser.UserAgent)
	assert.Equal(t, "https://www.instagram.com", cfg.Browser.BaseURL)

	assert.Equal(t, time.Second, cfg.Crawl.BackoffUnit)
	assert.Equal(t, 600, cfg.Crawl.TimeoutBudget)
	assert.Equal(t, 10, cfg.Crawl.DetailRetryLimit)
	assert.Equal(t, 10*time.Minute, cfg.Crawl.BudgetDuration())

	assert.Equal(t, "./output", cfg.Output.Directory)
	assert.Empty(t, cfg.Database.DSN)
	assert.False(t, cfg.Download.Enabled)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 100, cfg.Logging.MaxSize)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IGCRAWLER_TARGET", "40")
	t.Setenv("IGCRAWLER_DETAIL", "true")
	t.Setenv("IGCRAWLER_TIMEOUT_BUDGET", "120")
	t.Setenv("IGCRAWLER_BACKOFF_UNIT", "250ms")
	t.Setenv("IGCRAWLER_OUTPUT_DIR", "/env/output")
	t.Setenv("IGCRAWLER_DATABASE_URL", "postgres://crawler@localhost/feeds")
	t.Setenv("IGCRAWLER_HEADLESS", "false")
	t.Setenv("IGCRAWLER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 40, cfg.Crawl.Target)
	assert.True(t, cfg.Crawl.Detail)
	assert.Equal(t, 120, cfg.Crawl.TimeoutBudget)
	assert.Equal(t, 250*time.Millisecond, cfg.Crawl.BackoffUnit)
	assert.Equal(t, "/env/output", cfg.Output.Directory)
	assert.Equal(t, "postgres://crawler@localhost/feeds", cfg.Database.DSN)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("IGCRAWLER_TARGET", "many")
	t.Setenv("IGCRAWLER_BACKOFF_UNIT", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IGCRAWLER_TARGET")
	assert.Contains(t, err.Error(), "IGCRAWLER_BACKOFF_UNIT")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
crawl:
  target: 25
  detail: true
  timeout_budget: 300
output:
  directory: /data/feeds
database:
  dsn: postgres://localhost/ig
  schema: crawl
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 25, cfg.Crawl.Target)
	assert.True(t, cfg.Crawl.Detail)
	assert.Equal(t, 300, cfg.Crawl.TimeoutBudget)
	assert.Equal(t, "/data/feeds", cfg.Output.Directory)
	assert.Equal(t, "crawl", cfg.Database.Schema)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// untouched sections keep their defaults
	assert.Equal(t, 10, cfg.Crawl.DetailRetryLimit)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile("/nonexistent/config.yaml"))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl: [unclosed"), 0600))
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "negative target",
			modify:  func(c *Config) { c.Crawl.Target = -1 },
			wantErr: "crawl target cannot be negative",
		},
		{
			name:    "zero budget",
			modify:  func(c *Config) { c.Crawl.TimeoutBudget = 0 },
			wantErr: "timeout budget must be positive",
		},
		{
			name:    "zero backoff unit",
			modify:  func(c *Config) { c.Crawl.BackoffUnit = 0 },
			wantErr: "backoff unit must be positive",
		},
		{
			name:    "zero retry limit",
			modify:  func(c *Config) { c.Crawl.DetailRetryLimit = 0 },
			wantErr: "detail retry limit must be positive",
		},
		{
			name:    "missing output directory",
			modify:  func(c *Config) { c.Output.Directory = "" },
			wantErr: "output directory is required",
		},
		{
			name: "too many downloads",
			modify: func(c *Config) {
				c.Download.Enabled = true
				c.Download.ConcurrentDownloads = 20
			},
			wantErr: "concurrent downloads should not exceed 10",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name: "database without pool",
			modify: func(c *Config) {
				c.Database.DSN = "postgres://localhost/ig"
				c.Database.MaxConns = 0
			},
			wantErr: "database max conns must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Crawl.TimeoutBudget = 0
	cfg.Output.Directory = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout budget")
	assert.Contains(t, err.Error(), "output directory")
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Crawl.Target = 77
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Config
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, 77, loaded.Crawl.Target)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"count":          0,
		"detail":         true,
		"timeout-budget": 60,
		"output":         "/flags/out",
		"download-media": true,
		"log-level":      "error",
	})

	assert.Equal(t, 0, cfg.Crawl.Target)
	assert.True(t, cfg.Crawl.Detail)
	assert.Equal(t, 60, cfg.Crawl.TimeoutBudget)
	assert.Equal(t, "/flags/out", cfg.Output.Directory)
	assert.True(t, cfg.Download.Enabled)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl:\n  target: 5\n  timeout_budget: 100\n"), 0600))

	t.Setenv("IGCRAWLER_TIMEOUT_BUDGET", "200")

	cfg, err := Load(path, map[string]interface{}{"count": 9})
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Crawl.Target)
	assert.Equal(t, 200, cfg.Crawl.TimeoutBudget)
}
