package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"metadata-ingestion/internal/common/auth"
)

// FakeDomo serves the subset of the Domo API used by the connector
type FakeDomo struct {
	Server *httptest.Server

	ClientID     string
	ClientSecret string
	AccessToken  string

	verifier  *auth.Registry
	mu        sync.Mutex
	pipelines []map[string]any
	runs      map[string][]map[string]any
	requests  []string

	// ErrorOnRoute makes a named route answer with the given status code
	ErrorOnRoute map[string]int
}

// Route names for ErrorOnRoute
const (
	RouteDataflows  = "dataflows"
	RouteExecutions = "executions"
	RouteToken      = "token"
)

// NewFakeDomo starts a fake Domo server seeded with fixtures
func NewFakeDomo(t testing.TB, fixtures *TestFixtures) *FakeDomo {
	t.Helper()

	f := &FakeDomo{
		ClientID:     "client",
		ClientSecret: "secret",
		AccessToken:  "developer-token",
		pipelines:    fixtures.Pipelines,
		runs:         fixtures.Runs,
		ErrorOnRoute: map[string]int{},
		verifier:     auth.NewRegistry(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/dataprocessing/v1/dataflows", f.handleDataflows).Methods(http.MethodGet).Name(RouteDataflows)
	r.HandleFunc("/api/dataprocessing/v1/dataflows/{id}/executions", f.handleExecutions).Methods(http.MethodGet).Name(RouteExecutions)
	r.HandleFunc("/oauth/token", f.handleToken).Methods(http.MethodPost).Name(RouteToken)
	r.Use(f.record)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake instance
func (f *FakeDomo) URL() string {
	return f.Server.URL
}

// Requests returns the request paths served so far
func (f *FakeDomo) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// SetError makes route answer with status
func (f *FakeDomo) SetError(route string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ErrorOnRoute[route] = status
}

func (f *FakeDomo) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.URL.RequestURI())
		status := 0
		if route := mux.CurrentRoute(r); route != nil {
			status = f.ErrorOnRoute[route.GetName()]
		}
		f.mu.Unlock()

		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeDomo) authorized(r *http.Request) bool {
	err := f.verifier.Verify("apikey", r, map[string]string{
		"api_key":  f.AccessToken,
		"key_name": "X-DOMO-Developer-Token",
	})
	return err == nil
}

func (f *FakeDomo) handleDataflows(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.pipelines)
}

func (f *FakeDomo) handleExecutions(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.URL.Query().Get("limit") != "100" || r.URL.Query().Get("offset") != "0" {
		http.Error(w, "unexpected paging", http.StatusBadRequest)
		return
	}

	id := mux.Vars(r)["id"]
	f.mu.Lock()
	defer f.mu.Unlock()
	runs, ok := f.runs[id]
	if !ok {
		http.Error(w, "dataflow not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (f *FakeDomo) handleToken(w http.ResponseWriter, r *http.Request) {
	err := f.verifier.Verify("basic", r, map[string]string{
		"username": f.ClientID,
		"password": f.ClientSecret,
	})
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": "oauth-token",
		"token_type":   "bearer",
		"expires_in":   3600,
		"scope":        r.PostForm.Get("scope"),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
