package store

import (
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"MarketArchive/internal/calendar"
	"MarketArchive/internal/fileutil"
	"MarketArchive/internal/model"
)

// parquetBar is the columnar row layout, in canonical column order.
type parquetBar struct {
	Date     string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Open     float64 `parquet:"name=open, type=DOUBLE"`
	High     float64 `parquet:"name=high, type=DOUBLE"`
	Low      float64 `parquet:"name=low, type=DOUBLE"`
	Close    float64 `parquet:"name=close, type=DOUBLE"`
	AdjClose float64 `parquet:"name=adj_close, type=DOUBLE"`
	Volume   int64   `parquet:"name=volume, type=INT64"`
	Ticker   string  `parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Source   string  `parquet:"name=source, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

type parquetCodec struct{}

func (parquetCodec) Read(path string) (model.Series, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(parquetBar), 1)
	if err != nil {
		return nil, fmt.Errorf("read parquet footer: %w", err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	if n == 0 {
		return model.Series{}, nil
	}
	rows := make([]parquetBar, n)
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}

	out := make(model.Series, 0, n)
	for i, r := range rows {
		d, err := calendar.Parse(r.Date)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, ErrMissingDate)
		}
		out = append(out, model.Bar{
			Date:     d,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			AdjClose: r.AdjClose,
			Volume:   r.Volume,
			Ticker:   r.Ticker,
			Source:   model.Source(r.Source),
		})
	}
	return out, nil
}

func (parquetCodec) Write(path string, s model.Series) error {
	return fileutil.WriteAtomic(path, func(tmp string) error {
		fw, err := local.NewLocalFileWriter(tmp)
		if err != nil {
			return err
		}
		pw, err := writer.NewParquetWriter(fw, new(parquetBar), 1)
		if err != nil {
			fw.Close()
			return err
		}
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
		for _, b := range s {
			row := parquetBar{
				Date:     calendar.Format(b.Date),
				Open:     b.Open,
				High:     b.High,
				Low:      b.Low,
				Close:    b.Close,
				AdjClose: b.AdjClose,
				Volume:   b.Volume,
				Ticker:   b.Ticker,
				Source:   string(b.Source),
			}
			if err := pw.Write(row); err != nil {
				fw.Close()
				return fmt.Errorf("write parquet row: %w", err)
			}
		}
		if err := pw.WriteStop(); err != nil {
			fw.Close()
			return fmt.Errorf("finish parquet: %w", err)
		}
		return fw.Close()
	})
}
