package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curia/internal/common"
	"github.com/ternarybob/curia/internal/interfaces"
	"github.com/ternarybob/curia/internal/services/events"
	"github.com/ternarybob/curia/internal/services/fetcher"
	"github.com/ternarybob/curia/internal/services/metrics"
	"github.com/ternarybob/curia/internal/services/processor"
	"github.com/ternarybob/curia/internal/services/scheduler"
	syncsvc "github.com/ternarybob/curia/internal/services/sync"
	"github.com/ternarybob/curia/internal/storage/sqlite"
)

// App holds the wired application components
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	Fetcher          interfaces.Fetcher
	Processor        *processor.Processor
	EventService     interfaces.EventService
	MetricsService   interfaces.MetricsService
	Orchestrator     *syncsvc.Orchestrator
	SchedulerService *scheduler.Service

	cache *fetcher.ResponseCache
}

// Options tweaks construction for individual commands
type Options struct {
	// Migrate runs pending migrations instead of verifying the schema
	// sentinel. Only the migrate command sets this.
	Migrate bool
}

// New wires the application from config. The database must already be
// migrated unless opts.Migrate is set.
func New(ctx context.Context, config *common.Config, logger arbor.ILogger, opts Options) (*App, error) {
	if logger == nil {
		logger = common.GetLogger()
	}

	a := &App{
		Config: config,
		Logger: logger,
	}

	var storageManager *sqlite.Manager
	var err error
	if opts.Migrate {
		storageManager, err = sqlite.NewMigratedManager(ctx, logger, &config.Storage.SQLite)
	} else {
		storageManager, err = sqlite.NewManager(ctx, logger, &config.Storage.SQLite)
	}
	if err != nil {
		return nil, err
	}
	a.StorageManager = storageManager

	if config.Storage.Cache.Enabled {
		cache, err := fetcher.NewResponseCache(config.Storage.Cache.Path, logger)
		if err != nil {
			// A dead cache degrades to uncached fetching, it never blocks sync
			logger.Warn().Err(err).Msg("Response cache unavailable, continuing without")
		} else {
			a.cache = cache
		}
	}

	a.Fetcher = fetcher.NewClient(&config.OParl, a.cache, logger)
	a.Processor = processor.New(logger)

	a.EventService = events.NewService(logger)
	if err := events.RegisterLoggerSubscriber(a.EventService, logger); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to register event subscribers: %w", err)
	}

	if config.Metrics.Enabled {
		metricsService, err := metrics.NewService(config.Metrics.Stdout)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
		a.MetricsService = metricsService
	} else {
		a.MetricsService = metrics.Noop{}
	}

	a.Orchestrator = syncsvc.NewOrchestrator(
		config,
		a.Fetcher,
		a.Processor,
		a.StorageManager,
		a.EventService,
		a.MetricsService,
		interfaces.SystemClock{},
		logger,
	)

	a.SchedulerService = scheduler.NewService(func(ctx context.Context) error {
		results, err := a.Orchestrator.SyncAll(ctx, false, false)
		if err != nil {
			return err
		}
		for _, result := range results {
			if !result.Success {
				return fmt.Errorf("source %s failed with %d errors", result.SourceURL, len(result.Errors))
			}
		}
		return nil
	}, logger)

	return a, nil
}

// Close releases all resources in reverse construction order
func (a *App) Close() {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}
	if a.MetricsService != nil {
		if err := a.MetricsService.Shutdown(context.Background()); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to shut down metrics")
		}
	}
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close response cache")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
}
