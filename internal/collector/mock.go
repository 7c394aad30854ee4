package collector

import (
	"context"
	"time"

	"MarketArchive/internal/calendar"
	"MarketArchive/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// When Bars is nil it generates one bar per weekday around Price.
type MockFetcher struct {
	Price float64
	Bars  model.Series
}

func (m *MockFetcher) Name() model.Source { return model.SourceMock }

func (m *MockFetcher) FetchDaily(_ context.Context, _ string, start, end time.Time) (model.Series, error) {
	start, end = calendar.Day(start), calendar.Day(end)
	if m.Bars != nil {
		out := model.Series{}
		for _, b := range m.Bars {
			if calendar.Between(calendar.Day(b.Date), start, end) {
				out = append(out, b)
			}
		}
		return out, nil
	}
	return generateMockBars(m.Price, start, end), nil
}

func generateMockBars(basePrice float64, start, end time.Time) model.Series {
	bars := model.Series{}
	for i, d := 0, start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		p := basePrice * (1 + float64(i)*0.001)
		bars = append(bars, model.Bar{
			Date:     d,
			Open:     p * 0.999,
			High:     p * 1.005,
			Low:      p * 0.995,
			Close:    p,
			AdjClose: p,
			Volume:   1000000,
		})
		i++
	}
	return bars
}
