package recorder

import "context"

const (
	StatusOK    = "ok"
	StatusEmpty = "empty"
	StatusError = "error"
)

// FetchEvent records the outcome of fetching one ticker.
type FetchEvent struct {
	RunID  string
	Ticker string
	Source string // empty when no source produced rows
	Rows   int
	Status string // StatusOK, StatusEmpty or StatusError
	Error  string
}

// WriteEvent records one successful series write.
type WriteEvent struct {
	RunID  string
	Ticker string
	Path   string
	Format string
	Rows   int
}

// Recorder journals fetch runs for later inspection.
type Recorder interface {
	RecordFetch(evt *FetchEvent) error
	RecordWrite(evt *WriteEvent) error
	Close() error
}

type runIDKey struct{}

// WithRunID attaches a run identifier to ctx.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run identifier carried by ctx, or "".
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
