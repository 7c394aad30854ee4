package main

import (
	"MarketArchive/internal/collector"
	"MarketArchive/internal/config"
	"MarketArchive/internal/logging"
	"MarketArchive/internal/model"
	"MarketArchive/internal/recorder"
)

// newCollector builds the fetch engine described by cfg. The mock primary
// runs offline, so it gets no fallback.
func newCollector(cfg *config.Config, logger *logging.Logger) *collector.Collector {
	client := collector.NewHTTPClient(cfg.DataSource.Proxy, cfg.DataSource.Timeout, cfg.DataSource.RequestsPerSecond)

	if cfg.DataSource.Primary == string(model.SourceMock) {
		return collector.NewCollector(&collector.MockFetcher{Price: 100}, nil, logger)
	}
	primary := collector.NewYahooFetcher(cfg.DataSource.YahooBaseURL, client)
	secondary := collector.NewStooqFetcher(cfg.DataSource.StooqBaseURL, client)
	return collector.NewCollector(primary, secondary, logger)
}

// openRecorder opens the run journal, falling back to a no-op journal.
func openRecorder(path string, logger *logging.Logger) recorder.Recorder {
	if path == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(path)
	if err != nil {
		logger.Warn().Str("path", path).Err(err).Msg("init sqlite recorder failed, using noop")
		return recorder.NewNoopRecorder()
	}
	return sr
}
