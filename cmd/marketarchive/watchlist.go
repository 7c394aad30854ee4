package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"MarketArchive/internal/logging"
	"MarketArchive/internal/watchlist"
)

// watchlistCmd implements the "watchlist" command.
type watchlistCmd struct {
	opts     watchlist.Options
	logLevel string

	stdout io.Writer
	stderr io.Writer
}

func newWatchlistCmd() *watchlistCmd {
	return &watchlistCmd{stdout: os.Stdout, stderr: os.Stderr}
}

func (*watchlistCmd) Name() string     { return "watchlist" }
func (*watchlistCmd) Synopsis() string { return "derives tickers.json from portfolio and trade CSVs" }
func (*watchlistCmd) Usage() string {
	return `watchlist [-portfolio FILE] [-trades FILE] [-extras FILE] [-out FILE]

Collects current holdings, recently held and recently traded tickers plus a
static extras list, writes them to -out and prints the result.
`
}

func (c *watchlistCmd) SetFlags(f *flag.FlagSet) {
	d := watchlist.DefaultOptions()
	f.StringVar(&c.opts.PortfolioCSV, "portfolio", d.PortfolioCSV, "portfolio snapshot CSV")
	f.StringVar(&c.opts.TradeLogCSV, "trades", d.TradeLogCSV, "trade log CSV")
	f.StringVar(&c.opts.ExtrasJSON, "extras", d.ExtrasJSON, "static extras JSON")
	f.StringVar(&c.opts.Out, "out", d.Out, "output tickers JSON")
	f.IntVar(&c.opts.RecentTradeDays, "recent-trade-days", d.RecentTradeDays, "include tickers traded within this many days of the last trade")
	f.IntVar(&c.opts.RetentionDays, "retention-days", d.RetentionDays, "include tickers held within this many days of the last snapshot")
	f.StringVar(&c.logLevel, "log-level", "info", "debug, info, warn or error")
}

func (c *watchlistCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	d := watchlist.NewDeriver(logging.NewConsole(c.logLevel, c.stderr))
	payload, err := d.Derive(c.opts)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.stdout, string(out))
	return subcommands.ExitSuccess
}
