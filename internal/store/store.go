// Package store persists per-ticker daily series as flat files, merging new
// bars into what is already on disk.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"MarketArchive/internal/calendar"
	"MarketArchive/internal/logging"
	"MarketArchive/internal/model"
	"MarketArchive/internal/recorder"
)

// ErrMissingDate marks a series or file without usable dates.
var ErrMissingDate = errors.New("missing Date column")

// Period is the granularity marker in file names.
const Period = "D"

// codec reads and writes one series file.
type codec interface {
	Read(path string) (model.Series, error)
	Write(path string, s model.Series) error
}

func codecFor(f model.Format) (codec, error) {
	switch f {
	case model.FormatCSV:
		return csvCodec{}, nil
	case model.FormatParquet:
		return parquetCodec{}, nil
	}
	return nil, fmt.Errorf("unsupported format %q", f)
}

// Store writes series under Dir, one file per ticker.
// Concurrent runs against the same Dir are not coordinated.
type Store struct {
	Dir         string
	Format      model.Format
	Incremental bool
	Logger      *logging.Logger
	Recorder    recorder.Recorder
}

// New creates a Store.
func New(dir string, format model.Format, incremental bool, logger *logging.Logger) *Store {
	return &Store{
		Dir:         dir,
		Format:      format,
		Incremental: incremental,
		Logger:      logging.OrSilent(logger),
		Recorder:    recorder.NewNoopRecorder(),
	}
}

func (s *Store) log() *logging.Logger { return logging.OrSilent(s.Logger) }

// reserved are characters that cannot appear in a file name on common filesystems.
const reserved = `^/\:*?"<>|`

// SafeName replaces filesystem-reserved characters, e.g. ^GSPC -> _GSPC.
func SafeName(ticker string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(reserved, r) {
			return '_'
		}
		return r
	}, ticker)
}

// PathFor returns the file holding ticker's series, e.g. dir/AAPL_D.csv.
func PathFor(dir, ticker string, f model.Format) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", SafeName(ticker), Period, f.Ext()))
}

// Merge appends fresh to prior, keeps the last bar for each date and sorts
// ascending by date.
func Merge(prior, fresh model.Series) model.Series {
	idx := make(map[string]int, len(prior)+len(fresh))
	out := make(model.Series, 0, len(prior)+len(fresh))
	for _, part := range []model.Series{prior, fresh} {
		for _, b := range part {
			b.Date = calendar.Day(b.Date)
			k := calendar.Format(b.Date)
			if i, ok := idx[k]; ok {
				out[i] = b
				continue
			}
			idx[k] = len(out)
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Persist writes every non-empty series and returns the written paths in
// ticker order. A failure for one ticker is logged and skipped; only an
// unusable output directory is returned as an error. When two tickers map to
// the same file name, the first in ticker order is kept and the other is
// skipped with a warning.
func (s *Store) Persist(ctx context.Context, results map[string]model.Series) ([]string, error) {
	c, err := codecFor(s.Format)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	tickers := make([]string, 0, len(results))
	for t := range results {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	paths := make([]string, 0, len(tickers))
	owners := make(map[string]string, len(tickers))
	for _, t := range tickers {
		series := results[t]
		if series.Empty() {
			continue
		}
		if err := validate(series); err != nil {
			s.log().Error().Str("ticker", t).Err(err).Msg("skipping series")
			continue
		}

		path := s.PathOf(t)
		if other, ok := owners[path]; ok {
			s.log().Warn().Str("ticker", t).Str("other_ticker", other).Str("path", path).
				Msg("file name collision, skipping ticker")
			continue
		}
		owners[path] = t
		merged, err := s.write(c, path, series)
		if err != nil {
			s.log().Error().Str("ticker", t).Str("path", path).Err(err).Msg("write failed")
			continue
		}
		paths = append(paths, path)
		s.log().Info().Str("ticker", t).Str("path", path).Int("rows", len(merged)).Msg("wrote series")
		s.record(ctx, &recorder.WriteEvent{Ticker: t, Path: path, Format: string(s.Format), Rows: len(merged)})
	}
	return paths, nil
}

func (s *Store) write(c codec, path string, fresh model.Series) (model.Series, error) {
	var prior model.Series
	if s.Incremental {
		old, err := c.Read(path)
		switch {
		case err == nil:
			prior = old
		case errors.Is(err, os.ErrNotExist):
		default:
			s.log().Warn().Str("path", path).Err(err).Msg("ignoring unreadable prior file")
		}
	}
	merged := Merge(prior, fresh)
	if err := c.Write(path, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Load reads a stored series back.
func (s *Store) Load(ticker string) (model.Series, error) {
	c, err := codecFor(s.Format)
	if err != nil {
		return nil, err
	}
	return c.Read(s.PathOf(ticker))
}

func validate(series model.Series) error {
	for _, b := range series {
		if b.Date.IsZero() {
			return ErrMissingDate
		}
	}
	return nil
}

func (s *Store) record(ctx context.Context, evt *recorder.WriteEvent) {
	if s.Recorder == nil {
		return
	}
	evt.RunID = recorder.RunIDFrom(ctx)
	if err := s.Recorder.RecordWrite(evt); err != nil {
		s.log().Error().Str("ticker", evt.Ticker).Err(err).Msg("record write event")
	}
}

// PathOf returns where ticker's series is stored.
func (s *Store) PathOf(ticker string) string {
	return PathFor(s.Dir, ticker, s.Format)
}
