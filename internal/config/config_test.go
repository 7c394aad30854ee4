package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketArchive/internal/model"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"HTTPS_PROXY", "MARKETARCHIVE_OUT_DIR", "MARKETARCHIVE_FORMAT", "MARKETARCHIVE_ON_ERROR",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "SQLITE_PATH", "CRON_REFRESH", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "yahoo", cfg.DataSource.Primary)
	assert.Equal(t, 20*time.Second, cfg.DataSource.Timeout)
	assert.Equal(t, "0 30 22 * * 1-5", cfg.Schedule.Cron)
	assert.Equal(t, "watchlist", cfg.Schedule.Group)
	assert.Empty(t, cfg.Database.SQLitePath)
	assert.False(t, cfg.TelegramEnabled())

	f, err := cfg.Format()
	require.NoError(t, err)
	assert.Equal(t, model.FormatCSV, f)
	p, err := cfg.ErrorPolicy()
	require.NoError(t, err)
	assert.Equal(t, model.PolicyWarn, p)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_source:
  primary: mock
  timeout: 5s
  requests_per_second: 0.5
output:
  dir: out
  format: parquet
  incremental: true
schedule:
  lookback_days: 3
telegram:
  bot_token: file-token
`), 0o644))

	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("MARKETARCHIVE_ON_ERROR", "raise")
	t.Setenv("MARKETARCHIVE_OUT_DIR", "elsewhere")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "mock", cfg.DataSource.Primary)
	assert.Equal(t, 5*time.Second, cfg.DataSource.Timeout)
	assert.Equal(t, 0.5, cfg.DataSource.RequestsPerSecond)
	assert.Equal(t, "elsewhere", cfg.Output.Dir)
	assert.Equal(t, "parquet", cfg.Output.Format)
	assert.True(t, cfg.Output.Incremental)
	assert.Equal(t, "raise", cfg.Output.OnError)
	assert.Equal(t, 3, cfg.Schedule.LookbackDays)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: [unclosed"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base := func() *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.DataSource.Primary = "alpaca"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Output.Format = "xlsx"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Output.OnError = "explode"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Output.Dir = "prices.csv"
	assert.Error(t, cfg.Validate())
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, DefaultPath, PathFromEnv())
	t.Setenv("CONFIG_PATH", "/etc/ma.yaml")
	assert.Equal(t, "/etc/ma.yaml", PathFromEnv())
}
