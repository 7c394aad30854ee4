package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"MarketArchive/internal/calendar"
	"MarketArchive/internal/logging"
	"MarketArchive/internal/model"
	"MarketArchive/internal/recorder"
)

// MaxAttempts is how many times the primary source is tried per ticker.
const MaxAttempts = 3

// ErrNoData is returned by LatestClose when no source produced a bar.
var ErrNoData = errors.New("no data")

// FetchError reports that the fallback source failed for a ticker.
type FetchError struct {
	Ticker string
	Source model.Source
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s fetch failed: %v", e.Ticker, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DefaultBackOff waits 1s, then 2s, between the primary source attempts.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, MaxAttempts-1)
}

// Collector fetches daily bars per ticker from a primary source with retries,
// falling back to a secondary source when the primary yields nothing.
type Collector struct {
	Primary   Fetcher
	Secondary Fetcher // optional
	Logger    *logging.Logger
	Recorder  recorder.Recorder

	// NewBackOff builds the retry schedule for one ticker's primary attempts.
	NewBackOff func() backoff.BackOff
	// Now is the clock used by LatestClose.
	Now func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(primary, secondary Fetcher, logger *logging.Logger) *Collector {
	return &Collector{
		Primary:    primary,
		Secondary:  secondary,
		Logger:     logging.OrSilent(logger),
		Recorder:   recorder.NewNoopRecorder(),
		NewBackOff: DefaultBackOff,
		Now:        time.Now,
	}
}

func (c *Collector) log() *logging.Logger { return logging.OrSilent(c.Logger) }

// Fetch returns one series per ticker, keyed by the ticker as given. A ticker
// whose sources all failed maps to an empty series. The only error returned is
// a fallback failure under PolicyRaise, or ctx cancellation; tickers already
// fetched are returned alongside it.
func (c *Collector) Fetch(ctx context.Context, tickers []string, start, end time.Time, policy model.ErrorPolicy) (map[string]model.Series, error) {
	out := make(map[string]model.Series, len(tickers))
	for _, t := range tickers {
		series, err := c.fetchOne(ctx, t, start, end, policy)
		if err != nil {
			return out, err
		}
		out[t] = series
	}
	return out, nil
}

func (c *Collector) fetchOne(ctx context.Context, ticker string, start, end time.Time, policy model.ErrorPolicy) (model.Series, error) {
	start = calendar.Day(start)
	end = calendar.WeekendSafeEnd(end)

	bars, err := c.fetchPrimary(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	src := c.Primary.Name()

	if len(bars) == 0 && c.Secondary != nil {
		bars, err = c.Secondary.FetchDaily(ctx, ticker, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			ferr := &FetchError{Ticker: ticker, Source: c.Secondary.Name(), Err: err}
			c.record(ctx, &recorder.FetchEvent{Ticker: ticker, Status: recorder.StatusError, Error: ferr.Error()})
			switch policy {
			case model.PolicyRaise:
				return nil, ferr
			case model.PolicyWarn:
				c.log().Warn().Str("ticker", ticker).Err(err).Msg("fallback fetch failed")
			}
			return model.Series{}, nil
		}
		src = c.Secondary.Name()
	}

	if len(bars) == 0 {
		if policy == model.PolicyWarn {
			c.log().Warn().Str("ticker", ticker).Msg("no rows from any source")
		}
		c.record(ctx, &recorder.FetchEvent{Ticker: ticker, Status: recorder.StatusEmpty})
		return model.Series{}, nil
	}

	bars.Stamp(ticker, src)
	c.log().Debug().Str("ticker", ticker).Str("source", string(src)).Int("rows", len(bars)).Msg("fetched")
	c.record(ctx, &recorder.FetchEvent{Ticker: ticker, Source: string(src), Rows: len(bars), Status: recorder.StatusOK})
	return bars, nil
}

// fetchPrimary retries the primary source. Exhausting every attempt is "no
// data", so only ctx cancellation escapes.
func (c *Collector) fetchPrimary(ctx context.Context, ticker string, start, end time.Time) (model.Series, error) {
	var bars model.Series
	attempt := 0
	op := func() error {
		attempt++
		got, err := c.Primary.FetchDaily(ctx, ticker, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.log().Debug().Str("ticker", ticker).Int("attempt", attempt).Err(err).Msg("primary attempt failed")
			return err
		}
		bars = got
		return nil
	}

	newBackOff := c.NewBackOff
	if newBackOff == nil {
		newBackOff = DefaultBackOff
	}
	if err := backoff.Retry(op, backoff.WithContext(newBackOff(), ctx)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log().Warn().Str("ticker", ticker).Str("source", string(c.Primary.Name())).Err(err).Msg("primary fetch failed")
		return nil, nil
	}
	return bars, nil
}

// LatestClose returns the most recent close within the trailing week.
func (c *Collector) LatestClose(ctx context.Context, ticker string, policy model.ErrorPolicy) (time.Time, float64, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	today := calendar.Day(now())
	res, err := c.Fetch(ctx, []string{ticker}, today.AddDate(0, 0, -7), today, policy)
	if err != nil {
		return time.Time{}, 0, err
	}
	last, ok := res[ticker].Last()
	if !ok {
		return time.Time{}, 0, fmt.Errorf("%w for %s", ErrNoData, strings.ToUpper(ticker))
	}
	return last.Date, last.Close, nil
}

func (c *Collector) record(ctx context.Context, evt *recorder.FetchEvent) {
	if c.Recorder == nil {
		return
	}
	evt.RunID = recorder.RunIDFrom(ctx)
	if err := c.Recorder.RecordFetch(evt); err != nil {
		c.log().Error().Str("ticker", evt.Ticker).Err(err).Msg("record fetch event")
	}
}
