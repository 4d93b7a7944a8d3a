// Package pipeline holds the contract every pipeline connector implements and
// the runtime that drives a connector through one ingestion run.
package pipeline

import (
	"context"
	"iter"

	"github.com/samber/lo"
	"metadata-ingestion/internal/common/logging"
	"metadata-ingestion/internal/config"
	"metadata-ingestion/internal/config/connections"
	"metadata-ingestion/internal/ingestion"
	"metadata-ingestion/internal/ingestion/fqn"
	"metadata-ingestion/internal/models"
)

// TopologyContext is the runtime state a connector reads while converting a
// record. The runtime owns it and passes it by value.
type TopologyContext struct {
	ServiceFQN  string
	PipelineFQN string
}

// Source is implemented by every pipeline connector
type Source interface {
	GetPipelinesList(ctx context.Context) iter.Seq[models.PipelineDetails]
	GetPipelineName(details models.PipelineDetails) string
	YieldPipeline(ctx context.Context, tc TopologyContext, details models.PipelineDetails) iter.Seq[ingestion.Either[models.CreatePipelineRequest]]
	YieldPipelineLineageDetails(ctx context.Context, tc TopologyContext, details models.PipelineDetails) iter.Seq[ingestion.Either[models.AddLineageRequest]]
	YieldPipelineStatus(ctx context.Context, tc TopologyContext, details models.PipelineDetails) iter.Seq[ingestion.Either[models.OMetaPipelineStatus]]
	TestConnection(ctx context.Context) ingestion.TestConnectionResult

	ServiceType() models.PipelineServiceType
	ServiceConnection() connections.Connection
	SourceConfig() config.PipelineSourceConfig
	ServiceName() string
	RegisteredFQNs() []string
	ListError() error
	Status() *ingestion.Status
	Close() error
}

// Registry is the part of the metadata registry the runtime needs
type Registry interface {
	GetOrCreatePipelineService(ctx context.Context, req models.CreatePipelineServiceRequest) (*models.PipelineService, error)
	ListPipelines(ctx context.Context, serviceFQN string) ([]models.Pipeline, error)
	DeletePipeline(ctx context.Context, id string) error
}

// SourceFactory builds a connector from its workflow source configuration
type SourceFactory interface {
	GetType() string
	Create(raw any, metadata Registry) (Source, error)
}

// PipelineServiceSource carries the state shared by all pipeline connectors.
// Connectors embed it.
type PipelineServiceSource struct {
	Config   *config.WorkflowSource
	Metadata Registry
	Logger   logging.Logger

	status     *ingestion.Status
	registered []string
	listErr    error
}

// NewPipelineServiceSource creates the shared connector state
func NewPipelineServiceSource(cfg *config.WorkflowSource, metadata Registry, logger logging.Logger) PipelineServiceSource {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return PipelineServiceSource{
		Config:   cfg,
		Metadata: metadata,
		Logger:   logger.WithFields(logging.String("service", cfg.ServiceName)),
		status:   ingestion.NewStatus(),
	}
}

// RegisterRecord remembers the FQN of a pipeline seen in this run
func (b *PipelineServiceSource) RegisterRecord(req models.CreatePipelineRequest) {
	b.registered = append(b.registered, fqn.Build(req.Service, req.Name))
}

// RegisteredFQNs returns the FQNs registered so far, without duplicates
func (b *PipelineServiceSource) RegisteredFQNs() []string {
	return lo.Uniq(b.registered)
}

// SetListError records why pipeline enumeration stopped early
func (b *PipelineServiceSource) SetListError(err error) {
	b.listErr = err
}

// ListError returns the error that ended the last enumeration, if any
func (b *PipelineServiceSource) ListError() error {
	return b.listErr
}

// Status returns the source status
func (b *PipelineServiceSource) Status() *ingestion.Status {
	return b.status
}

// ServiceName returns the configured service name
func (b *PipelineServiceSource) ServiceName() string {
	return b.Config.ServiceName
}

// ServiceConnection returns the typed connection
func (b *PipelineServiceSource) ServiceConnection() connections.Connection {
	return b.Config.ServiceConnection.Config
}

// SourceConfig returns the pipeline source settings
func (b *PipelineServiceSource) SourceConfig() config.PipelineSourceConfig {
	return b.Config.SourceConfig.Config
}

// Close releases connector resources
func (b *PipelineServiceSource) Close() error {
	return nil
}
