package store

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"MarketArchive/internal/calendar"
	"MarketArchive/internal/fileutil"
	"MarketArchive/internal/model"
)

type csvCodec struct{}

// headerAliases lets files written by other tools load; keys are lower-cased.
var headerAliases = map[string]string{
	"adj close": "adj close",
	"adj_close": "adj close",
	"adjclose":  "adj close",
}

func (csvCodec) Read(path string) (model.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeCSV(f)
}

func (csvCodec) Write(path string, s model.Series) error {
	return fileutil.WriteAtomic(path, func(tmp string) error {
		f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		bw := bufio.NewWriter(f)
		if err := encodeCSV(bw, s); err != nil {
			f.Close()
			return err
		}
		if err := bw.Flush(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}

func encodeCSV(w io.Writer, s model.Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.Columns); err != nil {
		return err
	}
	for _, b := range s {
		rec := []string{
			calendar.Format(b.Date),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.AdjClose),
			strconv.FormatInt(b.Volume, 10),
			b.Ticker,
			string(b.Source),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// decodeCSV reads columns by header name, so files with a different column
// order or missing columns still load. Missing prices become NaN.
func decodeCSV(r io.Reader) (model.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty file: %w", ErrMissingDate)
	}
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		k := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if alias, ok := headerAliases[k]; ok {
			k = alias
		}
		col[k] = i
	}
	dateIdx, ok := col["date"]
	if !ok {
		return nil, ErrMissingDate
	}

	cell := func(rec []string, name string) (string, bool) {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[i]), true
	}
	num := func(rec []string, name string) (float64, error) {
		v, ok := cell(rec, name)
		if !ok || v == "" {
			return math.NaN(), nil
		}
		return strconv.ParseFloat(v, 64)
	}

	var out model.Series
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if dateIdx >= len(rec) {
			return nil, fmt.Errorf("line %d: %w", line, ErrMissingDate)
		}
		d, err := calendar.Parse(strings.TrimSpace(rec[dateIdx]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b := model.Bar{Date: d}
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low},
			{"close", &b.Close}, {"adj close", &b.AdjClose},
		} {
			if *f.dst, err = num(rec, f.name); err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, f.name, err)
			}
		}
		if v, ok := cell(rec, "volume"); ok && v != "" {
			vol, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d volume: %w", line, err)
			}
			b.Volume = int64(vol)
		}
		b.Ticker, _ = cell(rec, "ticker")
		if src, ok := cell(rec, "source"); ok {
			b.Source = model.Source(src)
		}
		out = append(out, b)
	}
	return out, nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
