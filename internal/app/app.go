// Package app wires the workflow: it resolves the configured source and sink,
// connects them to the metadata registry and records every run in the ledger.
package app

import (
	"fmt"
	"time"

	"metadata-ingestion/internal/clients/domo"
	"metadata-ingestion/internal/common/errors"
	commonhttp "metadata-ingestion/internal/common/http"
	"metadata-ingestion/internal/common/logging"
	"metadata-ingestion/internal/common/ratelimit"
	"metadata-ingestion/internal/common/registry"
	"metadata-ingestion/internal/config"
	"metadata-ingestion/internal/ingestion"
	"metadata-ingestion/internal/ometa"
	"metadata-ingestion/internal/sink/metadatarest"
	"metadata-ingestion/internal/source/pipeline"
	"metadata-ingestion/internal/source/pipeline/domopipeline"
	"metadata-ingestion/internal/storage"
	"metadata-ingestion/internal/storage/sqlite"
)

// SinkFactory builds a sink writing through the registry client
type SinkFactory interface {
	GetType() string
	Create(client metadatarest.Registry) (ingestion.Sink, error)
}

// App holds the dependencies of one ingest invocation
type App struct {
	Config   *config.Config
	Workflow *config.Workflow
	Sources  *registry.Registry[pipeline.SourceFactory]
	Sinks    *registry.Registry[SinkFactory]
	Ledger   storage.RunStore
	Logger   logging.Logger

	retry *commonhttp.RetryConfig
}

// Option customises New
type Option func(*App)

// WithRetryConfig overrides the HTTP retry policy of the vendor and registry clients
func WithRetryConfig(retry *commonhttp.RetryConfig) Option {
	return func(a *App) { a.retry = retry }
}

// WithLedger uses store instead of opening the configured state store
func WithLedger(store storage.RunStore) Option {
	return func(a *App) { a.Ledger = store }
}

// New creates an application for the workflow wf
func New(cfg *config.Config, wf *config.Workflow, opts ...Option) (*App, error) {
	if cfg == nil || wf == nil {
		return nil, errors.ConfigError("process and workflow configuration are required")
	}

	app := &App{
		Config:   cfg,
		Workflow: wf,
		Sources:  registry.New[pipeline.SourceFactory](),
		Sinks:    registry.New[SinkFactory](),
		Logger:   logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
	}
	for _, opt := range opts {
		opt(app)
	}

	app.registerFactories()

	if err := app.initializeLedger(); err != nil {
		return nil, err
	}

	return app, nil
}

func (a *App) registerFactories() {
	a.Sources.Register(domopipeline.Factory{ClientOptions: a.domoOptions(), Logger: a.Logger})
	a.Sinks.Register(metadatarest.Factory{Logger: a.Logger})
}

func (a *App) domoOptions() domo.Options {
	opts := domo.Options{
		Timeout:        a.Config.HTTPTimeout,
		CircuitBreaker: a.Config.CircuitBreakerEnabled,
		Retry:          a.retry,
		Logger:         a.Logger,
	}
	if a.Config.RateLimitEnabled {
		opts.RateLimit = &ratelimit.Config{
			Enabled:           true,
			RequestsPerSecond: a.Config.RateLimitRPS,
		}
	}
	return opts
}

func (a *App) ometaOptions() ometa.Options {
	opts := ometa.DefaultOptions()
	opts.Timeout = a.Config.HTTPTimeout
	opts.CircuitBreaker = a.Config.CircuitBreakerEnabled
	opts.Retry = a.retry
	opts.Logger = a.Logger
	return opts
}

func (a *App) initializeLedger() error {
	if a.Ledger != nil {
		return nil
	}

	path := a.Config.StateStorePath
	if path == "" {
		path = a.Workflow.WorkflowConfig.StateStore.Path
	}
	if path == "" {
		a.Logger.Debug("No state store configured, runs are not recorded")
		return nil
	}

	ledger, err := sqlite.NewAdapter(&sqlite.Config{DatabasePath: path})
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	a.Ledger = ledger
	a.Logger.Info("Recording runs", logging.String("state_store", path))
	return nil
}

func (a *App) newSource(metadata pipeline.Registry) (pipeline.Source, error) {
	factory, err := a.Sources.Get(a.Workflow.Source.Type)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("unknown source type %q: %v", a.Workflow.Source.Type, err))
	}
	return factory.Create(&a.Workflow.Source, metadata)
}

func (a *App) newSink(client metadatarest.Registry) (ingestion.Sink, error) {
	factory, err := a.Sinks.Get(a.Workflow.Sink.Type)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("unknown sink type %q: %v", a.Workflow.Sink.Type, err))
	}
	return factory.Create(client)
}

// Cleanup releases the ledger
func (a *App) Cleanup() {
	if a.Ledger == nil {
		return
	}
	if err := a.Ledger.Close(); err != nil {
		a.Logger.Error("Failed to close state store", err)
	}
}

func elapsed(start time.Time) logging.Field {
	return logging.Duration("elapsed", time.Since(start).Round(time.Millisecond))
}
