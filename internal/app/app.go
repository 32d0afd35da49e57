package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/Alash95/reporter/internal/common"
	"github.com/Alash95/reporter/internal/handlers"
	"github.com/Alash95/reporter/internal/interfaces"
	"github.com/Alash95/reporter/internal/models"
	"github.com/Alash95/reporter/internal/services/ingest"
	"github.com/Alash95/reporter/internal/services/notify"
	"github.com/Alash95/reporter/internal/services/parser"
	"github.com/Alash95/reporter/internal/services/query"
	"github.com/Alash95/reporter/internal/services/registry"
	"github.com/Alash95/reporter/internal/services/scheduler"
	"github.com/Alash95/reporter/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Store    interfaces.DocumentStore
	Registry interfaces.SourceRegistry

	Parser      interfaces.FileParser
	Notifier    interfaces.NotificationService
	Projections *notify.ProjectionStore
	Pipeline    *ingest.Pipeline
	Query       interfaces.QueryExecutor
	Scheduler   *scheduler.Scheduler

	// HTTP handlers
	APIHandler         *handlers.APIHandler
	FileHandler        *handlers.FileHandler
	IntegrationHandler *handlers.IntegrationHandler
	QueryHandler       *handlers.QueryHandler
	ContextHandler     *handlers.ContextHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.initHandlers()

	// Dispatch and workers start after everything is wired
	if err := app.Notifier.Start(); err != nil {
		return nil, fmt.Errorf("failed to start notification dispatch: %w", err)
	}
	if err := app.Pipeline.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ingestion pipeline: %w", err)
	}
	if err := app.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start maintenance scheduler: %w", err)
	}

	logger.Info().
		Str("storage", cfg.Storage.Type).
		Int("ingest_workers", cfg.Ingest.Concurrency).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initStorage() error {
	store, err := storage.NewDocumentStore(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.Store = store
	a.Logger.Debug().
		Str("storage", a.Config.Storage.Type).
		Msg("Storage layer initialized")
	return nil
}

func (a *App) initServices() error {
	reg := registry.NewRegistry(a.Store, a.Logger)
	a.Registry = reg

	log, err := notify.NewLog(a.Config.Notifications.LogFile)
	if err != nil {
		return fmt.Errorf("failed to open notification log: %w", err)
	}

	projections, err := notify.NewProjectionStore(a.Config.Notifications.ProjectionDir, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open projection store: %w", err)
	}
	a.Projections = projections

	notifier := notify.NewService(a.Logger, &a.Config.Notifications, log)
	notifier.SetSyncStamper(func(ctx context.Context, sourceID, feature string) error {
		return reg.UpdateFeatureSync(ctx, sourceID, feature, interfaces.FeatureSyncPatch{})
	})
	for _, feature := range models.KnownFeatures {
		notifier.RegisterHandler(feature, projections.Handler(feature))
	}
	a.Notifier = notifier

	a.Parser = parser.NewParser(a.Logger, a.Config.Ingest.MaxFileSize)

	a.Pipeline = ingest.NewPipeline(
		a.Logger,
		&a.Config.Ingest,
		a.Config.Notifications.SampleRows,
		a.Registry,
		a.Parser,
		a.Notifier,
	)

	a.Query = query.NewEngine(a.Logger, a.Registry)

	a.Scheduler = scheduler.NewScheduler(a.Logger, &a.Config.Maintenance, a.Pipeline, a.Registry, a.Notifier)

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.FileHandler = handlers.NewFileHandler(a.Pipeline, a.Registry, a.Config.Storage.UploadDir, a.Logger)
	a.IntegrationHandler = handlers.NewIntegrationHandler(a.Registry, a.Notifier, a.Pipeline, a.Logger)
	a.QueryHandler = handlers.NewQueryHandler(a.Query, a.Logger)
	a.ContextHandler = handlers.NewContextHandler(a.Projections, a.Logger)
}

// Close closes all application resources in reverse start order
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Pipeline != nil {
		a.Pipeline.Stop()
	}
	if a.Notifier != nil {
		a.Notifier.Stop()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}
	return nil
}
