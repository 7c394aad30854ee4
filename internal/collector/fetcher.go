package collector

import (
	"context"
	"time"

	"MarketArchive/internal/model"
)

// Fetcher retrieves daily bars for one symbol over an inclusive date window.
// A nil error with an empty series means the source answered but had no rows.
type Fetcher interface {
	FetchDaily(ctx context.Context, symbol string, start, end time.Time) (model.Series, error)
	Name() model.Source
}
