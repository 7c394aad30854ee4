package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoTickers is returned when a watchlist resolves to no tickers.
var ErrNoTickers = errors.New("no tickers")

// Watchlist is the ticker file consumed by the prices command and the
// scheduled refresh. It is the same shape the watchlist deriver writes.
type Watchlist struct {
	Tickers []string            `json:"tickers" yaml:"tickers"`
	Groups  map[string][]string `json:"groups" yaml:"groups"`
}

// Resolve returns the tickers of group when it exists, else the top-level list.
func (w *Watchlist) Resolve(group string) []string {
	if group != "" {
		if ts, ok := w.Groups[group]; ok {
			return NormalizeTickers(ts)
		}
	}
	return NormalizeTickers(w.Tickers)
}

// ReadWatchlist decodes a .json, .yaml or .yml watchlist file.
func ReadWatchlist(path string) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	w := &Watchlist{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, w)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, w)
	default:
		return nil, fmt.Errorf("watchlist %s: unsupported extension", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse watchlist %s: %w", path, err)
	}
	return w, nil
}

// LoadWatchlist reads path and resolves group to a non-empty ticker list.
func LoadWatchlist(path, group string) ([]string, error) {
	w, err := ReadWatchlist(path)
	if err != nil {
		return nil, err
	}
	tickers := w.Resolve(group)
	if len(tickers) == 0 {
		return nil, fmt.Errorf("watchlist %s: %w", path, ErrNoTickers)
	}
	return tickers, nil
}

// NormalizeTickers trims, upper-cases, de-duplicates and sorts tickers.
// Blank entries are dropped.
func NormalizeTickers(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
