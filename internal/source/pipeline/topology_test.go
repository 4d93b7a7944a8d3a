package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"metadata-ingestion/internal/common/logging"
	"metadata-ingestion/internal/config"
	"metadata-ingestion/internal/config/connections"
	"metadata-ingestion/internal/ingestion"
	"metadata-ingestion/internal/ingestion/fqn"
	"metadata-ingestion/internal/models"
)

type stubSource struct {
	PipelineServiceSource
	records []models.PipelineDetails
	listErr error
	calls   []string
}

func newStubSource(sc config.PipelineSourceConfig, records ...models.PipelineDetails) *stubSource {
	cfg := &config.WorkflowSource{
		Type:        "stub",
		ServiceName: "stub_service",
		ServiceConnection: config.ServiceConnection{Config: &connections.DomoPipelineConnection{
			DomoCredentials: connections.DomoCredentials{Type: connections.TypeDomoPipeline, AccessToken: "t", InstanceDomain: "https://x.domo.com"},
		}},
		SourceConfig: config.SourceConfig{Config: sc},
	}
	return &stubSource{
		PipelineServiceSource: NewPipelineServiceSource(cfg, nil, nil),
		records:               records,
	}
}

func (s *stubSource) GetPipelinesList(ctx context.Context) iter.Seq[models.PipelineDetails] {
	return func(yield func(models.PipelineDetails) bool) {
		for _, r := range s.records {
			if !yield(r) {
				return
			}
		}
		s.SetListError(s.listErr)
	}
}

func (s *stubSource) GetPipelineName(details models.PipelineDetails) string {
	name, _ := details["name"].(string)
	return name
}

func (s *stubSource) YieldPipeline(ctx context.Context, tc TopologyContext, details models.PipelineDetails) iter.Seq[ingestion.Either[models.CreatePipelineRequest]] {
	return func(yield func(ingestion.Either[models.CreatePipelineRequest]) bool) {
		id, ok := details["id"].(string)
		s.calls = append(s.calls, "pipeline:"+id)
		if !ok {
			yield(ingestion.Left[models.CreatePipelineRequest](&ingestion.StackTraceError{Name: s.GetPipelineName(details), Error: "missing id"}))
			return
		}
		req := models.CreatePipelineRequest{Name: id, Service: tc.ServiceFQN}
		if !yield(ingestion.Right(req)) {
			return
		}
		s.RegisterRecord(req)
	}
}

func (s *stubSource) YieldPipelineLineageDetails(ctx context.Context, tc TopologyContext, details models.PipelineDetails) iter.Seq[ingestion.Either[models.AddLineageRequest]] {
	return func(yield func(ingestion.Either[models.AddLineageRequest]) bool) {
		s.calls = append(s.calls, "lineage:"+tc.PipelineFQN)
	}
}

func (s *stubSource) YieldPipelineStatus(ctx context.Context, tc TopologyContext, details models.PipelineDetails) iter.Seq[ingestion.Either[models.OMetaPipelineStatus]] {
	return func(yield func(ingestion.Either[models.OMetaPipelineStatus]) bool) {
		s.calls = append(s.calls, "status:"+tc.PipelineFQN)
		yield(ingestion.Right(models.OMetaPipelineStatus{PipelineFQN: tc.PipelineFQN}))
	}
}

func (s *stubSource) TestConnection(ctx context.Context) ingestion.TestConnectionResult {
	return ingestion.TestConnectionResult{}
}

func (s *stubSource) ServiceType() models.PipelineServiceType {
	return models.PipelineServiceDomo
}

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) GetOrCreatePipelineService(ctx context.Context, req models.CreatePipelineServiceRequest) (*models.PipelineService, error) {
	args := m.Called(ctx, req)
	svc, _ := args.Get(0).(*models.PipelineService)
	return svc, args.Error(1)
}

func (m *mockRegistry) ListPipelines(ctx context.Context, serviceFQN string) ([]models.Pipeline, error) {
	args := m.Called(ctx, serviceFQN)
	pipelines, _ := args.Get(0).([]models.Pipeline)
	return pipelines, args.Error(1)
}

func (m *mockRegistry) DeletePipeline(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type recordingSink struct {
	status  *ingestion.Status
	written []any
	failFor map[string]bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{status: ingestion.NewStatus(), failFor: map[string]bool{}}
}

func (s *recordingSink) Write(ctx context.Context, r ingestion.Result) (any, error) {
	if f := r.Failure(); f != nil {
		s.status.Failed(*f)
		return nil, nil
	}
	s.written = append(s.written, r.Value())
	if req, ok := r.Value().(models.CreatePipelineRequest); ok {
		if s.failFor[req.Name] {
			return nil, stderrors.New("registry down")
		}
		return &models.Pipeline{Name: req.Name, FullyQualifiedName: fqn.Build(req.Service, req.Name)}, nil
	}
	return nil, nil
}

func (s *recordingSink) Status() *ingestion.Status { return s.status }
func (s *recordingSink) Close() error              { return nil }

func serviceRegistry() *mockRegistry {
	reg := &mockRegistry{}
	reg.On("GetOrCreatePipelineService", mock.Anything, mock.MatchedBy(func(req models.CreatePipelineServiceRequest) bool {
		return req.Name == "stub_service" && req.ServiceType == models.PipelineServiceDomo && req.Connection.Config["type"] == "DomoPipeline"
	})).Return(&models.PipelineService{Name: "stub_service", FullyQualifiedName: "stub_service"}, nil)
	return reg
}

func boolPtr(b bool) *bool { return &b }

func TestTopology_Run(t *testing.T) {
	source := newStubSource(config.PipelineSourceConfig{MarkDeletedPipelines: boolPtr(false)},
		models.PipelineDetails{"id": "1", "name": "first"},
		models.PipelineDetails{"name": "broken"},
		models.PipelineDetails{"id": "3", "name": "third"},
	)
	sink := newRecordingSink()
	reg := serviceRegistry()

	topology, err := NewTopology(source, sink, reg, nil)
	require.NoError(t, err)
	require.NoError(t, topology.Run(context.Background()))

	assert.Equal(t, []string{
		"pipeline:1", "status:stub_service.1",
		"pipeline:",
		"pipeline:3", "status:stub_service.3",
	}, source.calls)

	summary := source.Status().Summary()
	assert.Equal(t, 2, summary.Records)
	assert.Equal(t, 1, summary.Failures)
	assert.Len(t, sink.written, 4)
	assert.Equal(t, []string{"stub_service.1", "stub_service.3"}, source.RegisteredFQNs())
	reg.AssertNotCalled(t, "ListPipelines", mock.Anything, mock.Anything)
}

func TestTopology_FailedCreateSkipsStatuses(t *testing.T) {
	source := newStubSource(config.PipelineSourceConfig{MarkDeletedPipelines: boolPtr(false), IncludeLineage: true},
		models.PipelineDetails{"id": "1", "name": "first"},
		models.PipelineDetails{"id": "2", "name": "second"},
	)
	sink := newRecordingSink()
	sink.failFor["1"] = true

	topology, err := NewTopology(source, sink, serviceRegistry(), nil)
	require.NoError(t, err)
	require.NoError(t, topology.Run(context.Background()))

	assert.Equal(t, []string{
		"pipeline:1",
		"pipeline:2", "status:stub_service.2", "lineage:stub_service.2",
	}, source.calls)
}

func TestTopology_FilterPattern(t *testing.T) {
	source := newStubSource(config.PipelineSourceConfig{
		MarkDeletedPipelines:  boolPtr(false),
		PipelineFilterPattern: &config.FilterPattern{Includes: []string{"sales"}, Excludes: []string{".*tmp$"}},
	},
		models.PipelineDetails{"id": "1", "name": "Sales Daily"},
		models.PipelineDetails{"id": "2", "name": "sales_tmp"},
		models.PipelineDetails{"id": "3", "name": "marketing"},
	)

	topology, err := NewTopology(source, newRecordingSink(), serviceRegistry(), nil)
	require.NoError(t, err)
	require.NoError(t, topology.Run(context.Background()))

	assert.Equal(t, []string{"pipeline:1", "status:stub_service.1"}, source.calls)
	filtered := source.Status().Filtered()
	require.Len(t, filtered, 2)
	assert.Equal(t, "sales_tmp", filtered[0].Name)
	assert.Equal(t, FilteredReason, filtered[0].Reason)
	assert.Equal(t, "marketing", filtered[1].Name)
}

func TestTopology_MarkDeleted(t *testing.T) {
	source := newStubSource(config.PipelineSourceConfig{}, models.PipelineDetails{"id": "1", "name": "first"})
	reg := serviceRegistry()
	reg.On("ListPipelines", mock.Anything, "stub_service").Return([]models.Pipeline{
		{ID: "id-1", FullyQualifiedName: "stub_service.1"},
		{ID: "id-old", FullyQualifiedName: "stub_service.old"},
	}, nil)
	reg.On("DeletePipeline", mock.Anything, "id-old").Return(nil)

	topology, err := NewTopology(source, newRecordingSink(), reg, nil)
	require.NoError(t, err)
	require.NoError(t, topology.Run(context.Background()))

	reg.AssertCalled(t, "DeletePipeline", mock.Anything, "id-old")
	reg.AssertNotCalled(t, "DeletePipeline", mock.Anything, "id-1")
}

func TestTopology_ListErrorSkipsMarkDeleted(t *testing.T) {
	source := newStubSource(config.PipelineSourceConfig{})
	source.listErr = stderrors.New("domo unavailable")
	reg := serviceRegistry()

	topology, err := NewTopology(source, newRecordingSink(), reg, nil)
	require.NoError(t, err)
	require.NoError(t, topology.Run(context.Background()))

	failures := source.Status().Failures()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Error, "domo unavailable")
	reg.AssertNotCalled(t, "ListPipelines", mock.Anything, mock.Anything)
}

func TestTopology_ServiceRegistrationFails(t *testing.T) {
	source := newStubSource(config.PipelineSourceConfig{})
	reg := &mockRegistry{}
	reg.On("GetOrCreatePipelineService", mock.Anything, mock.Anything).Return(nil, stderrors.New("unauthorized"))

	topology, err := NewTopology(source, newRecordingSink(), reg, nil)
	require.NoError(t, err)

	err = topology.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to register pipeline service stub_service")
}

func TestTopology_Cancelled(t *testing.T) {
	source := newStubSource(config.PipelineSourceConfig{}, models.PipelineDetails{"id": "1", "name": "first"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	topology, err := NewTopology(source, newRecordingSink(), serviceRegistry(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, topology.Run(ctx), context.Canceled)
	assert.Empty(t, source.calls)
}

func TestNewTopology_InvalidFilter(t *testing.T) {
	source := newStubSource(config.PipelineSourceConfig{PipelineFilterPattern: &config.FilterPattern{Excludes: []string{"("}}})
	_, err := NewTopology(source, newRecordingSink(), serviceRegistry(), nil)
	assert.Error(t, err)
}

func TestTopology_LogsCarryPipelineName(t *testing.T) {
	source := newStubSource(config.PipelineSourceConfig{
		MarkDeletedPipelines:  boolPtr(false),
		PipelineFilterPattern: &config.FilterPattern{Excludes: []string{"^scratch"}},
	},
		models.PipelineDetails{"id": "9", "name": "scratch board"},
	)

	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: "debug", Output: &buf, JSON: true})
	topology, err := NewTopology(source, newRecordingSink(), serviceRegistry(), logger)
	require.NoError(t, err)
	require.NoError(t, topology.Run(context.Background()))

	assert.Contains(t, buf.String(), `"msg":"Pipeline filtered out"`)
	assert.Contains(t, buf.String(), `"pipeline":"scratch board"`)
}
