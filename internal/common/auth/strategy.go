// Package auth verifies the credentials carried by inbound HTTP requests.
//
// Strategies cover the schemes the ingestion clients send: HTTP Basic for the
// OAuth2 token endpoint, Bearer tokens for the metadata registry and API keys
// in headers for vendor developer tokens.
//
//	reg := auth.NewRegistry()
//	err := reg.Verify("apikey", r, map[string]string{
//		"key_name": "X-DOMO-Developer-Token",
//		"api_key":  token,
//	})
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"metadata-ingestion/internal/common/errors"
)

// Strategy verifies one authentication scheme
type Strategy interface {
	// Verify checks r against settings. Missing settings are a config error,
	// missing or wrong credentials an auth error.
	Verify(r *http.Request, settings map[string]string) error

	GetType() string
}

// BasicStrategy checks HTTP Basic credentials.
//
// Required settings: "username", "password".
type BasicStrategy struct{}

func (s *BasicStrategy) GetType() string {
	return "basic"
}

func (s *BasicStrategy) Verify(r *http.Request, settings map[string]string) error {
	username := settings["username"]
	password := settings["password"]
	if username == "" || password == "" {
		return errors.ConfigError("basic auth requires username and password")
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return errors.AuthError("missing Authorization header")
	}
	if !strings.HasPrefix(header, "Basic ") {
		return errors.AuthError("invalid Authorization header format")
	}

	payload, err := base64.StdEncoding.DecodeString(header[len("Basic "):])
	if err != nil {
		return errors.AuthError("invalid basic auth encoding")
	}

	user, pass, ok := strings.Cut(string(payload), ":")
	if !ok {
		return errors.AuthError("invalid basic auth format")
	}
	if !equal(user, username) || !equal(pass, password) {
		return errors.AuthError("invalid credentials")
	}
	return nil
}

// BearerStrategy checks an `Authorization: Bearer <token>` header.
//
// Required settings: "token".
type BearerStrategy struct{}

func (s *BearerStrategy) GetType() string {
	return "bearer"
}

func (s *BearerStrategy) Verify(r *http.Request, settings map[string]string) error {
	token := settings["token"]
	if token == "" {
		return errors.ConfigError("bearer auth requires token")
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return errors.AuthError("missing Authorization header")
	}
	provided, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return errors.AuthError("invalid Authorization header format")
	}
	if !equal(provided, token) {
		return errors.AuthError("invalid token")
	}
	return nil
}

// APIKeyStrategy checks a key sent in a header or query parameter.
//
// Required settings: "api_key". Optional: "key_name" (default X-API-Key) and
// "location", either "header" (default) or "query".
type APIKeyStrategy struct{}

func (s *APIKeyStrategy) GetType() string {
	return "apikey"
}

func (s *APIKeyStrategy) Verify(r *http.Request, settings map[string]string) error {
	apiKey := settings["api_key"]
	if apiKey == "" {
		return errors.ConfigError("apikey auth requires api_key")
	}

	keyName := settings["key_name"]
	if keyName == "" {
		keyName = "X-API-Key"
	}

	location := settings["location"]
	if location == "" {
		location = "header"
	}

	var provided string
	switch location {
	case "header":
		provided = r.Header.Get(keyName)
	case "query":
		provided = r.URL.Query().Get(keyName)
	default:
		return errors.ConfigError("invalid api key location: must be 'header' or 'query'")
	}

	if provided == "" {
		return errors.AuthError(fmt.Sprintf("missing API key in %s: %s", location, keyName))
	}
	if !equal(provided, apiKey) {
		return errors.AuthError("invalid API key")
	}
	return nil
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Registry resolves strategies by type
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry returns a registry holding the basic, bearer and apikey strategies
func NewRegistry() *Registry {
	reg := &Registry{strategies: map[string]Strategy{}}
	reg.Register(&BasicStrategy{})
	reg.Register(&BearerStrategy{})
	reg.Register(&APIKeyStrategy{})
	return reg
}

// Register adds or replaces a strategy
func (a *Registry) Register(strategy Strategy) {
	a.strategies[strategy.GetType()] = strategy
}

// Verify checks r with the strategy named authType
func (a *Registry) Verify(authType string, r *http.Request, settings map[string]string) error {
	strategy, ok := a.strategies[authType]
	if !ok {
		return errors.ConfigError(fmt.Sprintf("unsupported auth type: %s", authType))
	}
	return strategy.Verify(r, settings)
}

// GetSupportedTypes returns the registered strategy types, sorted
func (a *Registry) GetSupportedTypes() []string {
	types := make([]string, 0, len(a.strategies))
	for t := range a.strategies {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
