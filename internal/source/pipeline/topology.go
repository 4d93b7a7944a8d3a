package pipeline

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"metadata-ingestion/internal/common/errors"
	"metadata-ingestion/internal/common/logging"
	"metadata-ingestion/internal/config/connections"
	"metadata-ingestion/internal/ingestion"
	"metadata-ingestion/internal/models"
)

// FilteredReason is recorded for pipelines skipped by the filter pattern
const FilteredReason = "Pipeline Filtered Out"

// Topology drives a Source through one run: it registers the service, walks
// the pipelines in order and hands every result to the sink.
type Topology struct {
	source   Source
	sink     ingestion.Sink
	registry Registry
	filter   *Filter
	logger   logging.Logger
}

// NewTopology wires source, sink and registry together
func NewTopology(source Source, sink ingestion.Sink, registry Registry, logger logging.Logger) (*Topology, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	filter, err := NewFilter(source.SourceConfig().PipelineFilterPattern)
	if err != nil {
		return nil, err
	}

	return &Topology{
		source:   source,
		sink:     sink,
		registry: registry,
		filter:   filter,
		logger:   logger.WithFields(logging.String("service", source.ServiceName())),
	}, nil
}

// Run executes the topology. Per-record failures are recorded in the source
// and sink statuses; only service registration and cancellation return errors.
func (t *Topology) Run(ctx context.Context) error {
	service, err := t.ensureService(ctx)
	if err != nil {
		return err
	}

	tc := TopologyContext{ServiceFQN: service.FullyQualifiedName}

	for details := range t.source.GetPipelinesList(ctx) {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.processPipeline(ctx, tc, details)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := t.source.ListError(); err != nil {
		t.source.Status().Failed(*ingestion.NewStackTraceError(
			t.source.ServiceName(),
			fmt.Sprintf("Failed to list pipelines for %s - %v", t.source.ServiceName(), err),
			err,
		))
		t.logger.Warn("Skipping deleted pipeline detection after a listing failure")
		return nil
	}

	if t.source.SourceConfig().MarkDeleted() {
		t.markDeleted(ctx, tc.ServiceFQN)
	}

	return nil
}

func (t *Topology) ensureService(ctx context.Context) (*models.PipelineService, error) {
	conn, err := connections.ToMap(t.source.ServiceConnection())
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid service connection: %v", err))
	}

	service, err := t.registry.GetOrCreatePipelineService(ctx, models.CreatePipelineServiceRequest{
		Name:        t.source.ServiceName(),
		ServiceType: t.source.ServiceType(),
		Connection:  &models.ServiceConnection{Config: conn},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register pipeline service %s: %w", t.source.ServiceName(), err)
	}

	t.logger.Info("Using pipeline service", logging.String("fqn", service.FullyQualifiedName))
	return service, nil
}

func (t *Topology) processPipeline(ctx context.Context, tc TopologyContext, details models.PipelineDetails) {
	status := t.source.Status()

	name := t.source.GetPipelineName(details)
	ctx = context.WithValue(ctx, logging.PipelineKey, name)
	logger := t.logger.WithContext(ctx)
	if t.filter.Filtered(name) {
		status.Filter(name, FilteredReason)
		logger.Debug("Pipeline filtered out")
		return
	}

	for result := range t.source.YieldPipeline(ctx, tc, details) {
		if result.IsLeft() {
			status.Failed(*result.Left)
			continue
		}
		status.Scanned(result.Right.Name)

		out, err := t.sink.Write(ctx, result)
		if err != nil {
			continue
		}
		if p, ok := out.(*models.Pipeline); ok && p != nil {
			tc.PipelineFQN = p.FullyQualifiedName
		}
	}

	if tc.PipelineFQN == "" {
		logger.Debug("Pipeline was not stored, skipping its statuses")
		return
	}

	for result := range t.source.YieldPipelineStatus(ctx, tc, details) {
		if result.IsLeft() {
			status.Failed(*result.Left)
			continue
		}
		_, _ = t.sink.Write(ctx, result)
	}

	if t.source.SourceConfig().IncludeLineage {
		for result := range t.source.YieldPipelineLineageDetails(ctx, tc, details) {
			if result.IsLeft() {
				status.Failed(*result.Left)
				continue
			}
			_, _ = t.sink.Write(ctx, result)
		}
	}
}

// markDeleted soft-deletes the service's pipelines that this run did not register
func (t *Topology) markDeleted(ctx context.Context, serviceFQN string) {
	existing, err := t.registry.ListPipelines(ctx, serviceFQN)
	if err != nil {
		t.source.Status().Warning(fmt.Sprintf("Unable to list pipelines of %s for deletion: %v", serviceFQN, err))
		return
	}

	registered := t.source.RegisteredFQNs()
	stale := lo.Filter(existing, func(p models.Pipeline, _ int) bool {
		return !lo.Contains(registered, p.FullyQualifiedName)
	})

	for _, p := range stale {
		if err := t.registry.DeletePipeline(ctx, p.ID); err != nil {
			t.source.Status().Warning(fmt.Sprintf("Unable to delete pipeline %s: %v", p.FullyQualifiedName, err))
			continue
		}
		t.logger.Info("Marked pipeline as deleted", logging.String("pipeline", p.FullyQualifiedName))
	}
}
