package collector

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"MarketArchive/internal/calendar"
	"MarketArchive/internal/model"
)

const defaultStooqBaseURL = "https://stooq.com"

// stooqMarkets maps Yahoo exchange suffixes to stooq market codes.
var stooqMarkets = map[string]string{
	"L":  "uk",
	"PA": "fr",
	"MI": "it",
}

// StooqSymbol maps a Yahoo-style symbol to its stooq spelling:
// BP.L -> bp.uk, AAPL -> aapl.us. Unknown suffixes are kept lower-cased.
func StooqSymbol(symbol string) string {
	parts := strings.Split(symbol, ".")
	if len(parts) == 2 {
		ticker, suffix := parts[0], parts[1]
		market, ok := stooqMarkets[strings.ToUpper(suffix)]
		if !ok {
			market = strings.ToLower(suffix)
		}
		return strings.ToLower(ticker) + "." + market
	}
	return strings.ToLower(symbol) + ".us"
}

// StooqFetcher implements Fetcher using stooq's daily CSV download.
type StooqFetcher struct {
	BaseURL string
	Client  *HTTPClient
}

// NewStooqFetcher creates a new stooq fetcher.
func NewStooqFetcher(baseURL string, client *HTTPClient) *StooqFetcher {
	if baseURL == "" {
		baseURL = defaultStooqBaseURL
	}
	return &StooqFetcher{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

func (f *StooqFetcher) Name() model.Source { return model.SourceStooq }

// FetchDaily downloads the full daily history and keeps rows inside [start, end].
// Stooq has no adjusted close, so AdjClose mirrors Close.
func (f *StooqFetcher) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (model.Series, error) {
	u := fmt.Sprintf("%s/q/d/l/?s=%s&i=d", f.BaseURL, url.QueryEscape(StooqSymbol(symbol)))
	body, _, err := f.Client.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("stooq fetch: %w", err)
	}
	bars, err := parseStooqCSV(bytes.NewReader(body), calendar.Day(start), calendar.Day(end))
	if err != nil {
		return nil, fmt.Errorf("stooq parse: %w", err)
	}
	return bars, nil
}

func parseStooqCSV(r io.Reader, start, end time.Time) (model.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return model.Series{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(header) == 1 && strings.EqualFold(strings.TrimSpace(header[0]), "No data") {
		return model.Series{}, nil
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateIdx, ok := col["date"]
	if !ok {
		return nil, fmt.Errorf("missing Date column in header %v", header)
	}
	if _, ok := col["close"]; !ok {
		return nil, fmt.Errorf("missing Close column in header %v", header)
	}

	field := func(rec []string, name string) float64 {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return math.NaN()
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return math.NaN()
		}
		return v
	}

	bars := model.Series{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if dateIdx >= len(rec) {
			continue
		}
		day, err := calendar.Parse(strings.TrimSpace(rec[dateIdx]))
		if err != nil {
			return nil, err
		}
		if !calendar.Between(day, start, end) {
			continue
		}
		b := model.Bar{
			Date:  day,
			Open:  field(rec, "open"),
			High:  field(rec, "high"),
			Low:   field(rec, "low"),
			Close: field(rec, "close"),
		}
		b.AdjClose = b.Close
		if v := field(rec, "volume"); !math.IsNaN(v) && v > 0 {
			b.Volume = int64(v)
		}
		bars = append(bars, b)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}
