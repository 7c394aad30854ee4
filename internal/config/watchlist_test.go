package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNormalizeTickers(t *testing.T) {
	got := NormalizeTickers([]string{" msft", "AAPL", "aapl ", "", "  ", "^gspc"})
	assert.Equal(t, []string{"AAPL", "MSFT", "^GSPC"}, got)
}

func TestLoadWatchlist_JSONGroup(t *testing.T) {
	path := writeFile(t, "tickers.json", `{
  "tickers": ["aapl", "msft", "spy"],
  "groups": {"benchmarks": ["SPY"], "watchlist": ["msft", "aapl"]}
}`)

	got, err := LoadWatchlist(path, "benchmarks")
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY"}, got)

	got, err = LoadWatchlist(path, "missing")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "SPY"}, got)
}

func TestLoadWatchlist_YAML(t *testing.T) {
	path := writeFile(t, "tickers.yml", "tickers:\n  - nvda\n  - NVDA\n  - amd\n")
	got, err := LoadWatchlist(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"AMD", "NVDA"}, got)
}

func TestLoadWatchlist_Errors(t *testing.T) {
	_, err := LoadWatchlist(writeFile(t, "empty.json", `{"tickers": []}`), "watchlist")
	assert.ErrorIs(t, err, ErrNoTickers)

	_, err = LoadWatchlist(writeFile(t, "tickers.txt", "AAPL"), "")
	assert.Error(t, err)

	_, err = LoadWatchlist(writeFile(t, "bad.json", "{"), "")
	assert.Error(t, err)

	_, err = LoadWatchlist(filepath.Join(t.TempDir(), "absent.json"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
