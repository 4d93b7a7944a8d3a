// Package metadatarest sinks ingestion results into the metadata registry over REST.
package metadatarest

import (
	"context"
	"fmt"

	"metadata-ingestion/internal/common/logging"
	"metadata-ingestion/internal/ingestion"
	"metadata-ingestion/internal/models"
)

// SinkType is the workflow `sink.type` of this sink
const SinkType = "metadata-rest"

// Registry is the part of the registry client the sink writes through
type Registry interface {
	CreateOrUpdatePipeline(ctx context.Context, req models.CreatePipelineRequest) (*models.Pipeline, error)
	AddPipelineStatus(ctx context.Context, pipelineFQN string, status models.PipelineStatus) (*models.Pipeline, error)
	AddLineage(ctx context.Context, req models.AddLineageRequest) error
}

// Sink writes results to the registry. Every failure, whether produced by the
// source or by the registry, ends up in Status.
type Sink struct {
	client Registry
	status *ingestion.Status
	logger logging.Logger
}

// New creates a sink writing through client
func New(client Registry, logger logging.Logger) *Sink {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Sink{
		client: client,
		status: ingestion.NewStatus(),
		logger: logger.WithFields(logging.String("sink", SinkType)),
	}
}

// Write delivers one result. A registry error is recorded and returned so the
// caller can skip dependent records.
func (s *Sink) Write(ctx context.Context, r ingestion.Result) (any, error) {
	if failure := r.Failure(); failure != nil {
		s.status.Failed(*failure)
		return nil, nil
	}

	switch v := r.Value().(type) {
	case models.CreatePipelineRequest:
		p, err := s.client.CreateOrUpdatePipeline(ctx, v)
		if err != nil {
			return nil, s.fail(v.Name, err)
		}
		s.status.Scanned(p.FullyQualifiedName)
		s.logger.Debug("Stored pipeline", logging.String("fqn", p.FullyQualifiedName))
		return p, nil

	case models.OMetaPipelineStatus:
		p, err := s.client.AddPipelineStatus(ctx, v.PipelineFQN, v.PipelineStatus)
		if err != nil {
			return nil, s.fail(v.PipelineFQN, err)
		}
		s.status.Scanned(fmt.Sprintf("%s status", v.PipelineFQN))
		return p, nil

	case models.AddLineageRequest:
		if err := s.client.AddLineage(ctx, v); err != nil {
			return nil, s.fail(v.Edge.ToEntity.FullyQualifiedName, err)
		}
		s.status.Scanned(fmt.Sprintf("lineage %s -> %s", v.Edge.FromEntity.ID, v.Edge.ToEntity.ID))
		return nil, nil

	default:
		err := fmt.Errorf("unsupported record type %T", v)
		return nil, s.fail(fmt.Sprintf("%T", v), err)
	}
}

func (s *Sink) fail(name string, err error) error {
	s.logger.Warn("Failed to write record", logging.String("record", name), logging.Err(err))
	s.status.Failed(*ingestion.NewStackTraceError(name, err.Error(), err))
	return err
}

// Status returns the sink status
func (s *Sink) Status() *ingestion.Status {
	return s.status
}

// Close implements ingestion.Sink
func (s *Sink) Close() error {
	return nil
}

// Factory registers the sink with the sink registry
type Factory struct {
	Logger logging.Logger
}

// GetType implements registry.Factory
func (f Factory) GetType() string {
	return SinkType
}

// Create builds a sink writing through client
func (f Factory) Create(client Registry) (ingestion.Sink, error) {
	return New(client, f.Logger), nil
}
