package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"metadata-ingestion/internal/common/auth"
	"metadata-ingestion/internal/common/pagination"
	"metadata-ingestion/internal/ingestion/fqn"
	"metadata-ingestion/internal/models"
)

// Route names for FakeRegistry.ErrorOnRoute
const (
	RouteGetService    = "getService"
	RoutePutService    = "putService"
	RoutePutPipeline   = "putPipeline"
	RoutePutStatus     = "putStatus"
	RouteListPipelines = "listPipelines"
	RouteDeletePipe    = "deletePipeline"
	RoutePutLineage    = "putLineage"
)

// FakeRegistry serves the subset of the metadata registry API used by the sink and topology
type FakeRegistry struct {
	Server *httptest.Server
	Token  string

	verifier  *auth.Registry
	mu        sync.Mutex
	services  map[string]models.PipelineService
	pipelines map[string]models.Pipeline
	statuses  map[string][]models.PipelineStatus
	deleted   []string
	lineage   []models.AddLineageRequest
	calls     map[string]int

	// ErrorOnRoute makes a named route answer with the given status code
	ErrorOnRoute map[string]int
	// PageSize limits pipelines per list page
	PageSize int
}

// NewFakeRegistry starts a fake registry. An empty token disables auth checks.
func NewFakeRegistry(t testing.TB, token string) *FakeRegistry {
	t.Helper()

	f := &FakeRegistry{
		Token:        token,
		services:     map[string]models.PipelineService{},
		pipelines:    map[string]models.Pipeline{},
		statuses:     map[string][]models.PipelineStatus{},
		calls:        map[string]int{},
		ErrorOnRoute: map[string]int{},
		PageSize:     2,
		verifier:     auth.NewRegistry(),
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/services/pipelineServices/name/{name}", f.handleGetService).Methods(http.MethodGet).Name(RouteGetService)
	api.HandleFunc("/services/pipelineServices", f.handlePutService).Methods(http.MethodPut).Name(RoutePutService)
	api.HandleFunc("/pipelines", f.handlePutPipeline).Methods(http.MethodPut).Name(RoutePutPipeline)
	api.HandleFunc("/pipelines", f.handleListPipelines).Methods(http.MethodGet).Name(RouteListPipelines)
	api.HandleFunc("/pipelines/{fqn}/status", f.handlePutStatus).Methods(http.MethodPut).Name(RoutePutStatus)
	api.HandleFunc("/pipelines/{id}", f.handleDeletePipeline).Methods(http.MethodDelete).Name(RouteDeletePipe)
	api.HandleFunc("/lineage", f.handlePutLineage).Methods(http.MethodPut).Name(RoutePutLineage)
	api.Use(f.middleware)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// HostPort returns the value for openMetadataServerConfig.hostPort
func (f *FakeRegistry) HostPort() string {
	return f.Server.URL + "/api"
}

// SeedPipeline stores a pipeline as if a previous run had created it
func (f *FakeRegistry) SeedPipeline(service, name string) models.Pipeline {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := models.Pipeline{
		ID:                 uuid.NewString(),
		Name:               name,
		FullyQualifiedName: fqn.Build(service, name),
		Service:            models.EntityReference{Type: "pipelineService", Name: service, FullyQualifiedName: service},
	}
	f.pipelines[p.FullyQualifiedName] = p
	return p
}

// SetError makes route answer with status
func (f *FakeRegistry) SetError(route string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ErrorOnRoute[route] = status
}

// Pipeline returns a stored pipeline by FQN
func (f *FakeRegistry) Pipeline(fqnName string) (models.Pipeline, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pipelines[fqnName]
	return p, ok
}

// PipelineFQNs returns the stored, non-deleted pipeline FQNs in sorted order
func (f *FakeRegistry) PipelineFQNs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k, p := range f.pipelines {
		if !p.Deleted {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Statuses returns the statuses stored for a pipeline
func (f *FakeRegistry) Statuses(fqnName string) []models.PipelineStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PipelineStatus(nil), f.statuses[fqnName]...)
}

// Deleted returns the FQNs of soft-deleted pipelines
func (f *FakeRegistry) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// Calls returns how many times a route was served
func (f *FakeRegistry) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// Service returns a stored service by name
func (f *FakeRegistry) Service(name string) (models.PipelineService, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.services[name]
	return s, ok
}

func (f *FakeRegistry) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.Token != "" {
			if err := f.verifier.Verify("bearer", r, map[string]string{"token": f.Token}); err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": err.Error()})
				return
			}
		}

		f.mu.Lock()
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}
		f.calls[name]++
		status := f.ErrorOnRoute[name]
		f.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeRegistry) handleGetService(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	svc, ok := f.services[mux.Vars(r)["name"]]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "pipelineService not found"})
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (f *FakeRegistry) handlePutService(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePipelineServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid service"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	svc, ok := f.services[req.Name]
	if !ok {
		svc = models.PipelineService{ID: uuid.NewString(), Name: req.Name}
	}
	svc.FullyQualifiedName = fqn.Build(req.Name)
	svc.ServiceType = req.ServiceType
	f.services[req.Name] = svc
	writeJSON(w, http.StatusOK, svc)
}

func (f *FakeRegistry) handlePutPipeline(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Service == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid pipeline"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key := fqn.Build(req.Service, req.Name)
	p, ok := f.pipelines[key]
	if !ok {
		p.ID = uuid.NewString()
	}
	p.Name = req.Name
	p.DisplayName = req.DisplayName
	p.Description = req.Description
	p.FullyQualifiedName = key
	p.Tasks = req.Tasks
	p.SourceURL = req.SourceURL
	p.Deleted = false
	p.Service = models.EntityReference{Type: "pipelineService", Name: req.Service, FullyQualifiedName: req.Service}
	f.pipelines[key] = p
	writeJSON(w, http.StatusOK, p)
}

func (f *FakeRegistry) handlePutStatus(w http.ResponseWriter, r *http.Request) {
	var status models.PipelineStatus
	if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid status"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key := mux.Vars(r)["fqn"]
	p, ok := f.pipelines[key]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "pipeline not found"})
		return
	}
	f.statuses[key] = append(f.statuses[key], status)
	writeJSON(w, http.StatusOK, p)
}

func (f *FakeRegistry) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	service := r.URL.Query().Get("service")

	f.mu.Lock()
	defer f.mu.Unlock()

	var matching []models.Pipeline
	for _, p := range f.pipelines {
		if !p.Deleted && (service == "" || p.Service.FullyQualifiedName == service) {
			matching = append(matching, p)
		}
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].FullyQualifiedName < matching[j].FullyQualifiedName })

	params := pagination.ParseParams(r)
	if params.Limit > f.PageSize {
		params.Limit = f.PageSize
	}
	window := pagination.Window(matching, params)

	page := models.PipelineList{
		Data:   window.Items,
		Paging: models.Paging{After: window.After, Total: window.Total},
	}
	writeJSON(w, http.StatusOK, page)
}

func (f *FakeRegistry) handleDeletePipeline(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("hardDelete") != "false" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "only soft delete is supported"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := mux.Vars(r)["id"]
	for key, p := range f.pipelines {
		if p.ID == id {
			p.Deleted = true
			f.pipelines[key] = p
			f.deleted = append(f.deleted, key)
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "pipeline not found"})
}

func (f *FakeRegistry) handlePutLineage(w http.ResponseWriter, r *http.Request) {
	var req models.AddLineageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Edge.FromEntity.ID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid lineage"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lineage = append(f.lineage, req)
	w.WriteHeader(http.StatusOK)
}
