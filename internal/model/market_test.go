package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseErrorPolicy(t *testing.T) {
	for _, in := range []string{"raise", "WARN", " ignore "} {
		_, err := ParseErrorPolicy(in)
		require.NoError(t, err, in)
	}
	_, err := ParseErrorPolicy("panic")
	require.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Parquet")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, f)
	assert.Equal(t, "parquet", f.Ext())

	_, err = ParseFormat("xlsx")
	require.Error(t, err)
}

func TestSeries_StampUppercasesTicker(t *testing.T) {
	s := Series{NaNBar(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))}
	s.Stamp("bp.l", SourceStooq)
	assert.Equal(t, "BP.L", s[0].Ticker)
	assert.Equal(t, SourceStooq, s[0].Source)

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 5, last.Date.Day())

	_, ok = Series{}.Last()
	assert.False(t, ok)
}

func TestRunReport_Succeeded(t *testing.T) {
	r := &RunReport{Outcomes: []TickerOutcome{
		{Ticker: "AAPL", Rows: 3, Path: "out/AAPL_D.csv"},
		{Ticker: "MSFT", Rows: 2},
		{Ticker: "XYZ"},
	}}
	assert.Equal(t, 2, r.Succeeded(false))
	assert.Equal(t, 1, r.Succeeded(true))
}

func TestNewRunReport_MarkWritten(t *testing.T) {
	d := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	results := map[string]Series{
		"AAPL": {{Date: d, Close: 181.18, Source: SourceStooq}},
		"NOPE": {},
	}
	r := NewRunReport("id", d, d, []string{"AAPL", "NOPE", "GONE"}, results)
	require.Len(t, r.Outcomes, 3)
	assert.Equal(t, 1, r.Outcomes[0].Rows)
	assert.Equal(t, SourceStooq, r.Outcomes[0].Source)
	assert.Equal(t, 181.18, r.Outcomes[0].LastClose)
	assert.Equal(t, 0, r.Outcomes[2].Rows)

	r.MarkWritten([]string{"out/AAPL_D.csv"}, func(tk string) string { return "out/" + tk + "_D.csv" })
	assert.Equal(t, "out/AAPL_D.csv", r.Outcomes[0].Path)
	assert.Empty(t, r.Outcomes[1].Path)
	assert.Equal(t, 1, r.Succeeded(true))
}
