package model

import "time"

// TickerOutcome summarizes what one run did for one ticker.
type TickerOutcome struct {
	Ticker    string
	Source    Source
	Rows      int
	LastDate  time.Time
	LastClose float64
	Path      string
}

// RunReport is the result of one fetch-and-persist cycle.
type RunReport struct {
	RunID    string
	Start    time.Time
	End      time.Time
	Outcomes []TickerOutcome
}

// Succeeded counts tickers that produced data. When output was persisted,
// only tickers with a written path count.
func (r *RunReport) Succeeded(persisted bool) int {
	n := 0
	for _, o := range r.Outcomes {
		if persisted {
			if o.Path != "" {
				n++
			}
			continue
		}
		if o.Rows > 0 {
			n++
		}
	}
	return n
}

// NewRunReport summarizes results in the order tickers were requested.
func NewRunReport(runID string, start, end time.Time, tickers []string, results map[string]Series) *RunReport {
	r := &RunReport{RunID: runID, Start: start, End: end, Outcomes: make([]TickerOutcome, 0, len(tickers))}
	for _, t := range tickers {
		series := results[t]
		o := TickerOutcome{Ticker: t, Rows: len(series)}
		if last, ok := series.Last(); ok {
			o.Source = last.Source
			o.LastDate = last.Date
			o.LastClose = last.Close
		}
		r.Outcomes = append(r.Outcomes, o)
	}
	return r
}

// MarkWritten sets Path on every outcome whose path(ticker) is in written.
func (r *RunReport) MarkWritten(written []string, path func(ticker string) string) {
	set := make(map[string]bool, len(written))
	for _, p := range written {
		set[p] = true
	}
	for i := range r.Outcomes {
		if p := path(r.Outcomes[i].Ticker); set[p] {
			r.Outcomes[i].Path = p
		}
	}
}
