package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"MarketArchive/internal/calendar"
	"MarketArchive/internal/collector"
	"MarketArchive/internal/config"
	"MarketArchive/internal/logging"
	"MarketArchive/internal/model"
	"MarketArchive/internal/notifier"
	"MarketArchive/internal/recorder"
	"MarketArchive/internal/store"
)

// Notifier delivers run summaries.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// sendRetries is how often a summary is re-sent before giving up.
const sendRetries = 3

// ErrRefreshRunning is returned by RunNow while another refresh holds the store.
var ErrRefreshRunning = errors.New("refresh already running")

// Scheduler runs the price refresh on a cron schedule.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Store     *store.Store
	Notifier  Notifier // optional
	Logger    *logging.Logger
	Ctx       context.Context

	WatchlistPath string
	Group         string
	LookbackDays  int
	Policy        model.ErrorPolicy

	Now func() time.Time

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, col *collector.Collector, st *store.Store, n Notifier, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		Cron:         cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		Collector:    col,
		Store:        st,
		Notifier:     n,
		Logger:       logging.OrSilent(logger),
		Ctx:          ctx,
		LookbackDays: 10,
		Policy:       model.PolicyWarn,
		Now:          time.Now,
	}
}

func (s *Scheduler) log() *logging.Logger { return logging.OrSilent(s.Logger) }

// Register adds the refresh job under spec, a six-field cron expression.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log().Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running refreshes, scheduled or
// started with RunAsync, to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.wg.Wait()
	s.log().Info().Msg("scheduler stopped")
}

func (s *Scheduler) refreshTask() {
	ctx := s.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	_, _ = s.RunNow(ctx)
}

// RunAsync starts RunNow in the background. Stop waits for it.
func (s *Scheduler) RunAsync(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.RunNow(ctx)
	}()
}

// RunNow resolves the watchlist, fetches the lookback window ending today and
// persists it. Failures are logged and reported through the notifier.
// Only one refresh runs at a time; an overlapping call returns
// ErrRefreshRunning without touching the store.
func (s *Scheduler) RunNow(ctx context.Context) (*model.RunReport, error) {
	if !s.mu.TryLock() {
		s.log().Warn().Msg("refresh already running, skipping")
		return nil, ErrRefreshRunning
	}
	defer s.mu.Unlock()

	runID := uuid.NewString()
	ctx = recorder.WithRunID(ctx, runID)
	log := s.log().With().Str("run_id", runID).Logger()

	tickers, err := config.LoadWatchlist(s.WatchlistPath, s.Group)
	if err != nil {
		log.Error().Err(err).Msg("resolve watchlist")
		s.trySend(ctx, notifier.FormatFailure(err))
		return nil, err
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	end := calendar.Day(now())
	start := end.AddDate(0, 0, -s.LookbackDays)
	log.Info().Int("tickers", len(tickers)).
		Str("start", calendar.Format(start)).
		Str("end", calendar.Format(end)).
		Msg("running refresh")

	results, err := s.Collector.Fetch(ctx, tickers, start, end, s.Policy)
	if err != nil {
		log.Error().Err(err).Msg("fetch aborted")
		s.trySend(ctx, notifier.FormatFailure(err))
		return nil, err
	}

	paths, err := s.Store.Persist(ctx, results)
	if err != nil {
		log.Error().Err(err).Msg("persist")
		s.trySend(ctx, notifier.FormatFailure(err))
		return nil, err
	}

	report := model.NewRunReport(runID, start, end, tickers, results)
	report.MarkWritten(paths, s.Store.PathOf)
	log.Info().Int("saved", report.Succeeded(true)).Int("tickers", len(tickers)).Msg("refresh done")

	s.trySend(ctx, notifier.FormatRunSummary(report))
	return report, nil
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(ctx, text, sendRetries); err != nil {
		s.log().Error().Err(err).Msg("send notification")
	}
}
