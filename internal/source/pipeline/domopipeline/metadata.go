// Package domopipeline ingests Domo dataflows as pipelines.
package domopipeline

import (
	"context"
	"fmt"
	"iter"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/oauth2"
	"metadata-ingestion/internal/clients/domo"
	"metadata-ingestion/internal/common/errors"
	"metadata-ingestion/internal/common/logging"
	"metadata-ingestion/internal/common/utils"
	"metadata-ingestion/internal/config"
	"metadata-ingestion/internal/config/connections"
	"metadata-ingestion/internal/ingestion"
	"metadata-ingestion/internal/models"
	"metadata-ingestion/internal/source/pipeline"
)

// SourceType is the workflow `source.type` of this connector
const SourceType = "domopipeline"

const sourceURLTemplate = "%s/datacenter/dataflows/%s/details#history"

var statusMap = map[string]models.StatusType{
	"success": models.StatusSuccessful,
	"failure": models.StatusFailed,
	"queued":  models.StatusPending,
}

// Client is the Domo API surface used by the connector
type Client interface {
	GetPipelines(ctx context.Context) ([]models.PipelineDetails, error)
	GetRuns(ctx context.Context, pipelineID string) ([]domo.Run, error)
	GetToken(ctx context.Context) (*oauth2.Token, error)
	HasClientCredentials() bool
}

// Source extracts pipelines and their runs from Domo
type Source struct {
	pipeline.PipelineServiceSource

	connection *connections.DomoPipelineConnection
	client     Client
}

// Option customises Create
type Option func(*createOptions)

type createOptions struct {
	client        Client
	clientOptions domo.Options
	logger        logging.Logger
}

// WithClient uses c instead of building a Domo client from the connection
func WithClient(c Client) Option {
	return func(o *createOptions) { o.client = c }
}

// WithClientOptions tunes the Domo client built from the connection
func WithClientOptions(opts domo.Options) Option {
	return func(o *createOptions) { o.clientOptions = opts }
}

// WithLogger sets the connector logger
func WithLogger(l logging.Logger) Option {
	return func(o *createOptions) { o.logger = l }
}

// Create validates raw, a *config.WorkflowSource or its map form, and builds
// the connector. Any connection other than DomoPipeline is rejected.
func Create(raw any, metadata pipeline.Registry, opts ...Option) (*Source, error) {
	o := createOptions{clientOptions: domo.DefaultOptions()}
	for _, opt := range opts {
		opt(&o)
	}

	var cfg *config.WorkflowSource
	switch v := raw.(type) {
	case *config.WorkflowSource:
		cfg = v
	case map[string]any:
		parsed, err := config.ParseWorkflowSource(v)
		if err != nil {
			return nil, err
		}
		cfg = parsed
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported source config type %T", raw))
	}

	conn, ok := cfg.ServiceConnection.Config.(*connections.DomoPipelineConnection)
	if !ok {
		return nil, errors.InvalidSourceError(fmt.Sprintf(
			"Expected DomoPipelineConnection, but got %s", connections.TypeName(cfg.ServiceConnection.Config)))
	}

	logger := o.logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	client := o.client
	if client == nil {
		if o.clientOptions.Logger == nil {
			o.clientOptions.Logger = logger
		}
		c, err := domo.NewClient(conn, o.clientOptions)
		if err != nil {
			return nil, err
		}
		client = c
	}

	return &Source{
		PipelineServiceSource: pipeline.NewPipelineServiceSource(cfg, metadata, logger.WithFields(logging.String("source", SourceType))),
		connection:            conn,
		client:                client,
	}, nil
}

// ServiceType implements pipeline.Source
func (s *Source) ServiceType() models.PipelineServiceType {
	return models.PipelineServiceDomo
}

// GetPipelineName returns the display name of a dataflow. The canonical
// pipeline name is the dataflow id; see YieldPipeline.
func (s *Source) GetPipelineName(details models.PipelineDetails) string {
	name, _ := details["name"].(string)
	return name
}

// GetPipelinesList yields every dataflow of the instance. A failed listing is
// logged, recorded as the list error and ends the sequence.
func (s *Source) GetPipelinesList(ctx context.Context) iter.Seq[models.PipelineDetails] {
	return func(yield func(models.PipelineDetails) bool) {
		s.SetListError(nil)

		pipelines, err := s.client.GetPipelines(ctx)
		if err != nil {
			s.Logger.Error("Failed to list Domo dataflows", err)
			s.SetListError(err)
			return
		}

		for _, p := range pipelines {
			if !yield(p) {
				return
			}
		}
	}
}

// YieldPipeline converts one dataflow into a CreatePipelineRequest with a single task
func (s *Source) YieldPipeline(ctx context.Context, tc pipeline.TopologyContext, details models.PipelineDetails) iter.Seq[ingestion.Either[models.CreatePipelineRequest]] {
	return func(yield func(ingestion.Either[models.CreatePipelineRequest]) bool) {
		displayName := nameOrUnknown(details)

		req, err := s.buildPipelineRequest(tc, details)
		if err != nil {
			var message string
			if isMissingField(err) {
				message = fmt.Sprintf("Error extracting data from %s - %v", displayName, err)
			} else {
				message = fmt.Sprintf("Wild error ingesting pipeline %s - %v", displayName, err)
			}
			yield(ingestion.Left[models.CreatePipelineRequest](ingestion.NewStackTraceError(displayName, message, err)))
			return
		}

		if !yield(ingestion.Right(req)) {
			return
		}
		s.RegisterRecord(req)
	}
}

func (s *Source) buildPipelineRequest(tc pipeline.TopologyContext, details models.PipelineDetails) (req models.CreatePipelineRequest, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.Errorf("%v", r)
		}
	}()

	record, err := parsePipeline(details)
	if err != nil {
		return req, err
	}

	sourceURL := s.GetSourceURL(record.ID)
	task := models.Task{
		Name:        record.ID,
		DisplayName: record.Name,
		Description: record.Description,
		SourceURL:   sourceURL,
	}

	return models.CreatePipelineRequest{
		Name:        record.ID,
		DisplayName: record.Name,
		Description: record.Description,
		Tasks:       []models.Task{task},
		Service:     tc.ServiceFQN,
		StartDate:   record.Created,
		SourceURL:   sourceURL,
	}, nil
}

// YieldPipelineLineageDetails yields nothing: Domo does not expose dataflow lineage
func (s *Source) YieldPipelineLineageDetails(ctx context.Context, tc pipeline.TopologyContext, details models.PipelineDetails) iter.Seq[ingestion.Either[models.AddLineageRequest]] {
	return func(yield func(ingestion.Either[models.AddLineageRequest]) bool) {}
}

// YieldPipelineStatus yields one status per recorded run of the dataflow. The
// first failure yields a single Left and ends the sequence.
func (s *Source) YieldPipelineStatus(ctx context.Context, tc pipeline.TopologyContext, details models.PipelineDetails) iter.Seq[ingestion.Either[models.OMetaPipelineStatus]] {
	return func(yield func(ingestion.Either[models.OMetaPipelineStatus]) bool) {
		pipelineID, ok := utils.StringValue(details["id"])
		if !ok || pipelineID == "" {
			s.Logger.Debug("Could not extract ID while getting status", logging.Any("pipeline", details))
			return
		}

		fail := func(err error) {
			yield(ingestion.Left[models.OMetaPipelineStatus](ingestion.NewStackTraceError(
				tc.PipelineFQN,
				fmt.Sprintf("Error extracting status for %s - %v", pipelineID, err),
				err,
			)))
		}

		runs, err := protect(func() ([]domo.Run, error) { return s.client.GetRuns(ctx, pipelineID) })
		if err != nil {
			fail(err)
			return
		}

		for _, run := range runs {
			status, err := protect(func() (models.PipelineStatus, error) { return convertRun(pipelineID, run), nil })
			if err != nil {
				fail(err)
				return
			}
			if !yield(ingestion.Right(models.OMetaPipelineStatus{PipelineFQN: tc.PipelineFQN, PipelineStatus: status})) {
				return
			}
		}
	}
}

func convertRun(pipelineID string, run domo.Run) models.PipelineStatus {
	startTime := utils.MillisToSeconds(nonZero(run.BeginTime))
	endTime := utils.MillisToSeconds(nonZero(run.EndTime))
	state := executionStatus(run.State)

	return models.PipelineStatus{
		Timestamp:       endTime,
		ExecutionStatus: state,
		TaskStatus: []models.TaskStatus{{
			Name:            pipelineID,
			ExecutionStatus: state,
			StartTime:       startTime,
			EndTime:         endTime,
		}},
	}
}

func executionStatus(state string) models.StatusType {
	if status, ok := statusMap[strings.ToLower(state)]; ok {
		return status
	}
	return models.StatusPending
}

// Zero epoch values are treated as unset
func nonZero(v *int64) *int64 {
	if v == nil || *v == 0 {
		return nil
	}
	return v
}

// GetSourceURL links to the run history of a dataflow. It returns "" when the
// instance domain is unusable.
func (s *Source) GetSourceURL(pipelineID string) string {
	domain := utils.CleanURI(s.connection.InstanceDomain)
	if _, err := utils.ParseBaseURL(domain); err != nil {
		s.Logger.Warn(fmt.Sprintf("Unable to get source url for %s: %v", pipelineID, err))
		return ""
	}
	return fmt.Sprintf(sourceURLTemplate, domain, pipelineID)
}

// TestConnection checks the OAuth2 credentials, when configured, and the dataflow listing
func (s *Source) TestConnection(ctx context.Context) ingestion.TestConnectionResult {
	var result ingestion.TestConnectionResult

	if s.client.HasClientCredentials() {
		step := ingestion.TestConnectionStep{Name: "GetToken", Passed: true}
		if _, err := s.client.GetToken(ctx); err != nil {
			step.Passed = false
			step.Message = err.Error()
		}
		result.Steps = append(result.Steps, step)
	}

	step := ingestion.TestConnectionStep{Name: "GetPipelines", Passed: true}
	if pipelines, err := s.client.GetPipelines(ctx); err != nil {
		step.Passed = false
		step.Message = err.Error()
	} else {
		step.Message = fmt.Sprintf("found %d dataflows", len(pipelines))
	}
	result.Steps = append(result.Steps, step)

	return result
}

func protect[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.Errorf("%v", r)
		}
	}()
	v, err = fn()
	if err != nil {
		err = pkgerrors.WithStack(err)
	}
	return v, err
}

// Factory registers the connector with the source registry
type Factory struct {
	ClientOptions domo.Options
	Logger        logging.Logger
}

// GetType implements registry.Factory
func (f Factory) GetType() string {
	return SourceType
}

// Create implements pipeline.SourceFactory
func (f Factory) Create(raw any, metadata pipeline.Registry) (pipeline.Source, error) {
	return Create(raw, metadata, WithClientOptions(f.ClientOptions), WithLogger(f.Logger))
}
