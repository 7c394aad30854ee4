package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"MarketArchive/internal/config"
	"MarketArchive/internal/logging"
	"MarketArchive/internal/notifier"
	"MarketArchive/internal/scheduler"
	"MarketArchive/internal/store"
)

// scheduleCmd implements the "schedule" command.
type scheduleCmd struct {
	runNow bool
}

func newScheduleCmd() *scheduleCmd { return &scheduleCmd{} }

func (*scheduleCmd) Name() string     { return "schedule" }
func (*scheduleCmd) Synopsis() string { return "refreshes the watchlist prices on a cron schedule" }
func (*scheduleCmd) Usage() string {
	return `schedule [-run-now]

Loads the application config (CONFIG_PATH, default configs/config.yaml) and
refreshes the watchlist on schedule.cron until interrupted.
`
}

func (c *scheduleCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.runNow, "run-now", os.Getenv("RUN_ON_START") == "true", "run one refresh immediately")
}

func (c *scheduleCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: config validation: %v\n", err)
		return subcommands.ExitFailure
	}
	format, _ := cfg.Format()
	policy, _ := cfg.ErrorPolicy()

	logger := logging.New(cfg.LogLevel)
	logger.Info().Str("primary", cfg.DataSource.Primary).Msg("MarketArchive starting")

	rec := openRecorder(cfg.Database.SQLitePath, logger)
	defer rec.Close()

	col := newCollector(cfg, logger)
	col.Recorder = rec
	st := store.New(cfg.Output.Dir, format, cfg.Output.Incremental, logger)
	st.Recorder = rec

	var n scheduler.Notifier
	if cfg.TelegramEnabled() {
		n = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.DataSource.Proxy, logger)
	} else {
		logger.Info().Msg("telegram not configured, summaries disabled")
	}

	sched := scheduler.NewScheduler(ctx, col, st, n, logger)
	sched.WatchlistPath = cfg.Schedule.Watchlist
	sched.Group = cfg.Schedule.Group
	sched.LookbackDays = cfg.Schedule.LookbackDays
	sched.Policy = policy
	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		logger.Error().Err(err).Msg("register cron task")
		return subcommands.ExitFailure
	}
	sched.Start()
	defer sched.Stop()

	if c.runNow {
		logger.Info().Msg("running refresh now")
		sched.RunAsync(ctx)
	}

	logger.Info().Str("cron", cfg.Schedule.Cron).Msg("MarketArchive is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	logger.Info().Msg("shutdown signal received, stopping...")
	return subcommands.ExitSuccess
}
