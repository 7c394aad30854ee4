package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"

	"MarketArchive/internal/calendar"
	"MarketArchive/internal/collector"
	"MarketArchive/internal/config"
	"MarketArchive/internal/logging"
	"MarketArchive/internal/model"
	"MarketArchive/internal/recorder"
	"MarketArchive/internal/store"
)

// exitNoData is returned when no ticker produced data.
const exitNoData = subcommands.ExitStatus(2)

// stringList collects a repeatable, comma-separated flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			*s = append(*s, p)
		}
	}
	return nil
}

// pricesCmd implements the "prices" command.
type pricesCmd struct {
	tickers     stringList
	configPath  string
	group       string
	start       string
	end         string
	outDir      string
	format      string
	onError     string
	incremental bool
	logLevel    string
	table       bool

	stdout       io.Writer
	stderr       io.Writer
	newCollector func(cfg *config.Config, logger *logging.Logger) *collector.Collector
}

func newPricesCmd() *pricesCmd {
	return &pricesCmd{stdout: os.Stdout, stderr: os.Stderr, newCollector: newCollector}
}

func (*pricesCmd) Name() string     { return "prices" }
func (*pricesCmd) Synopsis() string { return "fetches daily OHLCV bars and optionally saves them" }
func (*pricesCmd) Usage() string {
	return `prices (-tickers AAPL,MSFT | -config watch.json) -start YYYY-MM-DD -end YYYY-MM-DD [flags]

Fetches daily bars for every ticker from the primary source, falling back to
the secondary source when the primary has nothing. With -out-dir each ticker is
written to DIR/<TICKER>_D.<format>; otherwise a summary is printed.
`
}

func (c *pricesCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&c.tickers, "tickers", "symbols, comma separated; repeatable")
	f.StringVar(&c.configPath, "config", "", "JSON/YAML watchlist file")
	f.StringVar(&c.group, "group", "watchlist", "group name in the watchlist file")
	f.StringVar(&c.start, "start", "", "first date, YYYY-MM-DD (required)")
	f.StringVar(&c.end, "end", "", "last date, YYYY-MM-DD (required)")
	f.StringVar(&c.outDir, "out-dir", "", "output directory; print only when empty")
	f.StringVar(&c.format, "format", "", "csv or parquet (default from config, csv)")
	f.StringVar(&c.onError, "on-error", "", "raise, warn or ignore (default from config, warn)")
	f.BoolVar(&c.incremental, "incremental", false, "merge with files already in -out-dir")
	f.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")
	f.BoolVar(&c.table, "table", false, "print full tables instead of a summary")
}

// pricesRun is a validated prices invocation.
type pricesRun struct {
	tickers     []string
	start, end  time.Time
	outDir      string
	format      model.Format
	policy      model.ErrorPolicy
	incremental bool
	table       bool
}

func (c *pricesCmd) usageError(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(c.stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

func (c *pricesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: load config: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(c.stderr, "Error: config validation: %v\n", err)
		return subcommands.ExitFailure
	}

	run := pricesRun{outDir: c.outDir, incremental: c.incremental, table: c.table}
	if strings.HasSuffix(strings.ToLower(run.outDir), ".csv") {
		return c.usageError("-out-dir expects a directory, not a file name")
	}

	formatName := c.format
	if formatName == "" {
		formatName = cfg.Output.Format
	}
	if run.format, err = model.ParseFormat(formatName); err != nil {
		return c.usageError("%v", err)
	}
	policyName := c.onError
	if policyName == "" {
		policyName = cfg.Output.OnError
	}
	if run.policy, err = model.ParseErrorPolicy(policyName); err != nil {
		return c.usageError("%v", err)
	}

	if c.start == "" || c.end == "" {
		return c.usageError("-start and -end are required")
	}
	if run.start, err = calendar.Parse(c.start); err != nil {
		return c.usageError("-start: %v", err)
	}
	if run.end, err = calendar.Parse(c.end); err != nil {
		return c.usageError("-end: %v", err)
	}
	if run.end.Before(run.start) {
		return c.usageError("-end %s is before -start %s", c.end, c.start)
	}

	tickers := append([]string(nil), c.tickers...)
	if c.configPath != "" {
		w, err := config.ReadWatchlist(c.configPath)
		if err != nil {
			return c.usageError("%v", err)
		}
		tickers = append(tickers, w.Resolve(c.group)...)
	}
	run.tickers = config.NormalizeTickers(tickers)
	if len(run.tickers) == 0 {
		return c.usageError("no tickers provided; use -tickers or -config")
	}

	level := c.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	logger := logging.NewConsole(level, c.stderr)

	rec := openRecorder(cfg.Database.SQLitePath, logger)
	defer rec.Close()

	col := c.newCollector(cfg, logger)
	col.Recorder = rec

	runID := uuid.NewString()
	ctx = recorder.WithRunID(ctx, runID)
	logger.Debug().Str("run_id", runID).Strs("tickers", run.tickers).Msg("prices run")
	return c.run(ctx, col, rec, logger, run)
}

func (c *pricesCmd) run(ctx context.Context, col *collector.Collector, rec recorder.Recorder, logger *logging.Logger, run pricesRun) subcommands.ExitStatus {
	results, err := col.Fetch(ctx, run.tickers, run.start, run.end, run.policy)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	report := model.NewRunReport(recorder.RunIDFrom(ctx), run.start, run.end, run.tickers, results)

	if run.outDir != "" {
		st := store.New(run.outDir, run.format, run.incremental, logger)
		st.Recorder = rec
		paths, err := st.Persist(ctx, results)
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(c.stdout, "Saved: [%s]\n", strings.Join(paths, " "))
		report.MarkWritten(paths, st.PathOf)
		if report.Succeeded(true) == 0 {
			return exitNoData
		}
		return subcommands.ExitSuccess
	}

	for _, t := range run.tickers {
		series := results[t]
		switch {
		case run.table && series.Empty():
			fmt.Fprintf(c.stdout, "%s: no data\n", t)
		case run.table:
			fmt.Fprintf(c.stdout, "%s:\n", t)
			printTable(c.stdout, series)
		default:
			src := "NA"
			if last, ok := series.Last(); ok {
				src = string(last.Source)
			}
			fmt.Fprintf(c.stdout, "%s: rows=%d source=%s\n", t, len(series), src)
		}
	}
	if report.Succeeded(false) == 0 {
		return exitNoData
	}
	return subcommands.ExitSuccess
}

func printTable(w io.Writer, s model.Series) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(model.Columns, "\t")+"\t")
	for _, b := range s {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%d\t%s\t%s\t\n",
			calendar.Format(b.Date), b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume, b.Ticker, b.Source)
	}
	tw.Flush()
}
