package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Source tags where a bar came from.
type Source string

const (
	SourceYahoo Source = "yahoo"
	SourceStooq Source = "stooq"
	SourceMock  Source = "mock"
)

// Columns is the canonical column order of a persisted series.
var Columns = []string{"Date", "Open", "High", "Low", "Close", "Adj Close", "Volume", "Ticker", "Source"}

// Bar represents one trading day for one ticker.
// Price fields are NaN when the vendor reported nothing for that day.
type Bar struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   int64
	Ticker   string
	Source   Source
}

// NaNBar returns a bar for date with every price field set to NaN.
func NaNBar(date time.Time) Bar {
	nan := math.NaN()
	return Bar{Date: date, Open: nan, High: nan, Low: nan, Close: nan, AdjClose: nan}
}

// Series is the date-ordered sequence of bars for a single ticker.
type Series []Bar

// Empty reports whether the series holds no bars.
func (s Series) Empty() bool { return len(s) == 0 }

// Last returns the most recent bar.
func (s Series) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Stamp sets ticker and source on every bar in place.
func (s Series) Stamp(ticker string, src Source) {
	ticker = strings.ToUpper(ticker)
	for i := range s {
		s[i].Ticker = ticker
		s[i].Source = src
	}
}

// ErrorPolicy decides what happens when every source fails for a ticker.
type ErrorPolicy string

const (
	PolicyRaise  ErrorPolicy = "raise"
	PolicyWarn   ErrorPolicy = "warn"
	PolicyIgnore ErrorPolicy = "ignore"
)

// ParseErrorPolicy validates a policy name.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch p := ErrorPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyRaise, PolicyWarn, PolicyIgnore:
		return p, nil
	}
	return "", fmt.Errorf("unknown error policy %q (want raise, warn or ignore)", s)
}

// Format is an on-disk encoding for a series.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatParquet:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want csv or parquet)", s)
}

// Ext returns the file extension without the leading dot.
func (f Format) Ext() string { return string(f) }
