// Package watchlist derives the active ticker universe from portfolio
// snapshots, the trade log and a static extras list.
package watchlist

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"MarketArchive/internal/calendar"
	"MarketArchive/internal/config"
	"MarketArchive/internal/fileutil"
	"MarketArchive/internal/logging"
)

// Benchmarks are reported in their own group when present.
var Benchmarks = []string{"SPY", "IWM", "XBI"}

const totalRow = "TOTAL"

// Options names the inputs and windows of one derivation.
type Options struct {
	PortfolioCSV    string
	TradeLogCSV     string
	ExtrasJSON      string
	Out             string
	RecentTradeDays int
	RetentionDays   int
}

// DefaultOptions mirrors the file layout the prices job expects.
func DefaultOptions() Options {
	return Options{
		PortfolioCSV:    "data/portfolio_update.csv",
		TradeLogCSV:     "data/trade_log.csv",
		ExtrasJSON:      "configs/static_extras.json",
		Out:             "configs/tickers.json",
		RecentTradeDays: 7,
		RetentionDays:   5,
	}
}

// Sources records which files a payload was derived from.
type Sources struct {
	PortfolioFile    string `json:"portfolio_file"`
	TradeLogFile     string `json:"trade_log_file"`
	StaticExtrasFile string `json:"static_extras_file"`
}

// Payload is the tickers.json document.
type Payload struct {
	LastUpdated string              `json:"last_updated"`
	Tickers     []string            `json:"tickers"`
	Groups      map[string][]string `json:"groups"`
	Sources     Sources             `json:"sources"`
}

// Deriver builds and writes watchlist payloads.
type Deriver struct {
	Logger *logging.Logger
	Now    func() time.Time
}

// NewDeriver creates a Deriver.
func NewDeriver(logger *logging.Logger) *Deriver {
	return &Deriver{Logger: logging.OrSilent(logger), Now: time.Now}
}

func (d *Deriver) log() *logging.Logger { return logging.OrSilent(d.Logger) }

// Derive computes the payload from opts and writes it to opts.Out when set.
// Missing or unreadable inputs contribute nothing.
func (d *Deriver) Derive(opts Options) (*Payload, error) {
	var all []string
	all = append(all, d.fromPortfolio(opts.PortfolioCSV, opts.RetentionDays)...)
	all = append(all, d.fromTrades(opts.TradeLogCSV, opts.RecentTradeDays)...)
	all = append(all, d.fromExtras(opts.ExtrasJSON)...)

	tickers := make([]string, 0, len(all))
	for _, t := range config.NormalizeTickers(all) {
		if t != totalRow {
			tickers = append(tickers, t)
		}
	}

	present := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		present[t] = true
	}
	benchmarks := []string{}
	for _, b := range Benchmarks {
		if present[b] {
			benchmarks = append(benchmarks, b)
		}
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	p := &Payload{
		LastUpdated: now().UTC().Format("2006-01-02T15:04:05Z"),
		Tickers:     tickers,
		Groups: map[string][]string{
			"benchmarks": benchmarks,
			"watchlist":  tickers,
		},
		Sources: Sources{
			PortfolioFile:    opts.PortfolioCSV,
			TradeLogFile:     opts.TradeLogCSV,
			StaticExtrasFile: opts.ExtrasJSON,
		},
	}

	if opts.Out != "" {
		if err := writeJSON(opts.Out, p); err != nil {
			return nil, fmt.Errorf("write watchlist: %w", err)
		}
		d.log().Info().Str("path", opts.Out).Int("tickers", len(tickers)).Msg("wrote watchlist")
	}
	return p, nil
}

type row struct {
	date   time.Time
	ticker string
	shares float64
}

// readRows returns the Date/Ticker(/Shares) rows of a CSV. Rows with an
// unparseable date are dropped.
func (d *Deriver) readRows(path string) []row {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			d.log().Warn().Str("path", path).Err(err).Msg("skipping unreadable input")
		}
		return nil
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	di, okD := col["date"]
	ti, okT := col["ticker"]
	if !okD || !okT {
		d.log().Warn().Str("path", path).Msg("input lacks Date or Ticker column")
		return nil
	}
	si, hasShares := col["shares"]

	var rows []row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			d.log().Warn().Str("path", path).Err(err).Msg("stopped reading input")
			break
		}
		if di >= len(rec) || ti >= len(rec) {
			continue
		}
		dt, err := parseDate(rec[di])
		if err != nil {
			continue
		}
		r := row{date: dt, ticker: strings.ToUpper(strings.TrimSpace(rec[ti]))}
		if hasShares && si < len(rec) {
			r.shares, _ = strconv.ParseFloat(strings.TrimSpace(rec[si]), 64)
		}
		rows = append(rows, r)
	}
	return rows
}

// parseDate accepts a bare date or a date with a time part.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i > 0 {
		s = s[:i]
	}
	return calendar.Parse(s)
}

func latest(rows []row) time.Time {
	var last time.Time
	for _, r := range rows {
		if r.date.After(last) {
			last = r.date
		}
	}
	return last
}

// fromPortfolio returns holdings on the latest snapshot date plus anything
// held within retentionDays of it.
func (d *Deriver) fromPortfolio(path string, retentionDays int) []string {
	rows := d.readRows(path)
	if len(rows) == 0 {
		return nil
	}
	last := latest(rows)
	var out []string
	for _, r := range rows {
		if r.ticker == totalRow {
			continue
		}
		if r.date.Equal(last) && r.shares > 0 {
			out = append(out, r.ticker)
			continue
		}
		if retentionDays > 0 && !r.date.Before(last.AddDate(0, 0, -retentionDays)) {
			out = append(out, r.ticker)
		}
	}
	return out
}

// fromTrades returns tickers traded within recentDays of the latest trade.
func (d *Deriver) fromTrades(path string, recentDays int) []string {
	rows := d.readRows(path)
	if len(rows) == 0 {
		return nil
	}
	cut := latest(rows).AddDate(0, 0, -recentDays)
	var out []string
	for _, r := range rows {
		if !r.date.Before(cut) {
			out = append(out, r.ticker)
		}
	}
	return out
}

// fromExtras reads either ["A","B"] or {"tickers":["A","B"]}.
func (d *Deriver) fromExtras(path string) []string {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			d.log().Warn().Str("path", path).Err(err).Msg("skipping unreadable extras")
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list
	}
	var obj struct {
		Tickers []string `json:"tickers"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		d.log().Warn().Str("path", path).Err(err).Msg("skipping malformed extras")
		return nil
	}
	return obj.Tickers
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFile(path, append(data, '\n'))
}
