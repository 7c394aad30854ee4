package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketArchive/internal/model"
)

// scriptedFetcher replays one response per call and repeats the last one.
type scriptedFetcher struct {
	name  model.Source
	steps []step
	calls []call
}

type step struct {
	bars model.Series
	err  error
}

type call struct {
	symbol     string
	start, end time.Time
}

func (f *scriptedFetcher) Name() model.Source { return f.name }

func (f *scriptedFetcher) FetchDaily(_ context.Context, symbol string, start, end time.Time) (model.Series, error) {
	f.calls = append(f.calls, call{symbol, start, end})
	if len(f.steps) == 0 {
		return model.Series{}, nil
	}
	i := len(f.calls) - 1
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	s := f.steps[i]
	return append(model.Series(nil), s.bars...), s.err
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func oneBar(date string, close float64) model.Series {
	return model.Series{{Date: day(date), Open: close, High: close, Low: close, Close: close, AdjClose: close, Volume: 10}}
}

func newTestCollector(primary, secondary Fetcher) *Collector {
	c := NewCollector(primary, secondary, nil)
	c.NewBackOff = func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, MaxAttempts-1) }
	return c
}

func TestFetch_PrimarySuccessStampsTickerAndSource(t *testing.T) {
	primary := &scriptedFetcher{name: model.SourceYahoo, steps: []step{{bars: oneBar("2024-01-05", 101)}}}
	secondary := &scriptedFetcher{name: model.SourceStooq}
	c := newTestCollector(primary, secondary)

	res, err := c.Fetch(context.Background(), []string{"aapl"}, day("2024-01-02"), day("2024-01-05"), model.PolicyWarn)
	require.NoError(t, err)
	require.Len(t, res["aapl"], 1)
	assert.Equal(t, "AAPL", res["aapl"][0].Ticker)
	assert.Equal(t, model.SourceYahoo, res["aapl"][0].Source)
	assert.Len(t, primary.calls, 1)
	assert.Empty(t, secondary.calls, "fallback must not run when the primary has rows")
}

func TestFetch_RetriesPrimaryThenSucceeds(t *testing.T) {
	primary := &scriptedFetcher{name: model.SourceYahoo, steps: []step{
		{err: errors.New("timeout")},
		{err: errors.New("reset by peer")},
		{bars: oneBar("2024-01-05", 100)},
	}}
	c := newTestCollector(primary, &scriptedFetcher{name: model.SourceStooq})

	res, err := c.Fetch(context.Background(), []string{"MSFT"}, day("2024-01-02"), day("2024-01-05"), model.PolicyRaise)
	require.NoError(t, err)
	assert.Len(t, primary.calls, 3)
	assert.Len(t, res["MSFT"], 1)
}

func TestFetch_ExhaustedPrimaryFallsBackToSecondary(t *testing.T) {
	primary := &scriptedFetcher{name: model.SourceYahoo, steps: []step{{err: errors.New("503")}}}
	secondary := &scriptedFetcher{name: model.SourceStooq, steps: []step{{bars: oneBar("2024-01-04", 55)}}}
	c := newTestCollector(primary, secondary)

	res, err := c.Fetch(context.Background(), []string{"BP.L"}, day("2024-01-02"), day("2024-01-05"), model.PolicyRaise)
	require.NoError(t, err)
	assert.Len(t, primary.calls, MaxAttempts)
	require.Len(t, secondary.calls, 1, "secondary is tried exactly once")
	assert.Equal(t, "BP.L", secondary.calls[0].symbol)
	require.Len(t, res["BP.L"], 1)
	assert.Equal(t, model.SourceStooq, res["BP.L"][0].Source)
	assert.Equal(t, "BP.L", res["BP.L"][0].Ticker)
}

func TestFetch_EmptyPrimaryIsNotRetried(t *testing.T) {
	primary := &scriptedFetcher{name: model.SourceYahoo, steps: []step{{bars: model.Series{}}}}
	secondary := &scriptedFetcher{name: model.SourceStooq}
	c := newTestCollector(primary, secondary)

	res, err := c.Fetch(context.Background(), []string{"ZZZZ"}, day("2024-01-02"), day("2024-01-05"), model.PolicyRaise)
	require.NoError(t, err)
	assert.Len(t, primary.calls, 1)
	assert.Len(t, secondary.calls, 1)
	assert.True(t, res["ZZZZ"].Empty())
}

func TestFetch_WeekendEndIsClamped(t *testing.T) {
	primary := &scriptedFetcher{name: model.SourceYahoo, steps: []step{{bars: oneBar("2024-01-05", 1)}}}
	c := newTestCollector(primary, nil)

	_, err := c.Fetch(context.Background(), []string{"AAPL"}, day("2024-01-02"), day("2024-01-07"), model.PolicyWarn)
	require.NoError(t, err)
	require.Len(t, primary.calls, 1)
	assert.Equal(t, day("2024-01-05"), primary.calls[0].end)
}

func TestFetch_DoubleFailurePolicies(t *testing.T) {
	for _, policy := range []model.ErrorPolicy{model.PolicyWarn, model.PolicyIgnore} {
		t.Run(string(policy), func(t *testing.T) {
			primary := &scriptedFetcher{name: model.SourceYahoo, steps: []step{
				{err: errors.New("down")}, {err: errors.New("down")}, {err: errors.New("down")},
				{bars: oneBar("2024-01-05", 7)},
			}}
			secondary := &scriptedFetcher{name: model.SourceStooq, steps: []step{{err: errors.New("csv broken")}}}
			c := newTestCollector(primary, secondary)

			res, err := c.Fetch(context.Background(), []string{"BAD", "GOOD"}, day("2024-01-02"), day("2024-01-05"), policy)
			require.NoError(t, err)
			require.Contains(t, res, "BAD")
			assert.True(t, res["BAD"].Empty())
			assert.Len(t, res["GOOD"], 1, "a failing ticker must not block the next one")
		})
	}
}

func TestFetch_DoubleFailureUnderRaiseAbortsBatch(t *testing.T) {
	primary := &scriptedFetcher{name: model.SourceYahoo, steps: []step{{err: errors.New("down")}}}
	secondary := &scriptedFetcher{name: model.SourceStooq, steps: []step{{err: errors.New("csv broken")}}}
	c := newTestCollector(primary, secondary)

	res, err := c.Fetch(context.Background(), []string{"BAD", "NEXT"}, day("2024-01-02"), day("2024-01-05"), model.PolicyRaise)
	require.Error(t, err)

	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "BAD", ferr.Ticker)
	assert.Equal(t, model.SourceStooq, ferr.Source)
	assert.NotContains(t, res, "NEXT")
	assert.Len(t, primary.calls, MaxAttempts, "remaining tickers are not attempted")
}

func TestFetch_ContextCanceledStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	primary := &scriptedFetcher{name: model.SourceYahoo, steps: []step{{err: errors.New("down")}}}
	c := newTestCollector(primary, &scriptedFetcher{name: model.SourceStooq})

	_, err := c.Fetch(ctx, []string{"AAPL"}, day("2024-01-02"), day("2024-01-05"), model.PolicyIgnore)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, primary.calls, 1)
}

func TestDefaultBackOff_Schedule(t *testing.T) {
	b := DefaultBackOff()
	b.Reset()
	assert.Equal(t, time.Second, b.NextBackOff())
	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestLatestClose(t *testing.T) {
	primary := &scriptedFetcher{name: model.SourceYahoo, steps: []step{{bars: model.Series{
		{Date: day("2024-01-04"), Close: 10},
		{Date: day("2024-01-05"), Close: 11},
	}}}}
	c := newTestCollector(primary, nil)
	c.Now = func() time.Time { return time.Date(2024, 1, 6, 15, 0, 0, 0, time.UTC) }

	d, px, err := c.LatestClose(context.Background(), "AAPL", model.PolicyWarn)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-05"), d)
	assert.Equal(t, 11.0, px)
	assert.Equal(t, day("2023-12-30"), primary.calls[0].start)
}

func TestLatestClose_NoData(t *testing.T) {
	c := newTestCollector(&scriptedFetcher{name: model.SourceYahoo}, &scriptedFetcher{name: model.SourceStooq})
	_, _, err := c.LatestClose(context.Background(), "NOPE", model.PolicyIgnore)
	require.ErrorIs(t, err, ErrNoData)
}
