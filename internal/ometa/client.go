// Package ometa is a REST client for an OpenMetadata-compatible metadata registry.
package ometa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"metadata-ingestion/internal/common/cache"
	"metadata-ingestion/internal/common/errors"
	commonhttp "metadata-ingestion/internal/common/http"
	"metadata-ingestion/internal/common/logging"
	"metadata-ingestion/internal/common/pagination"
	"metadata-ingestion/internal/common/utils"
	"metadata-ingestion/internal/config"
	"metadata-ingestion/internal/models"
)

const (
	apiVersion   = "/v1"
	listPageSize = 100

	// AuthProviderNone disables registry authentication
	AuthProviderNone = "no-auth"
)

// Options tune the registry client
type Options struct {
	Timeout         time.Duration
	Retry           *commonhttp.RetryConfig
	ServiceCacheTTL time.Duration
	CircuitBreaker  bool
	Logger          logging.Logger
}

// DefaultOptions returns the options used by the ingest command
func DefaultOptions() Options {
	return Options{
		Timeout:         30 * time.Second,
		ServiceCacheTTL: 10 * time.Minute,
		CircuitBreaker:  true,
	}
}

// Client talks to the registry API rooted at hostPort
type Client struct {
	baseURL  string
	http     *commonhttp.HTTPClientWrapper
	services cache.Cache
	cacheTTL time.Duration
	logger   logging.Logger
}

// NewClient validates the server config and builds a client. An expired or
// unparsable JWT is rejected with a config error.
func NewClient(cfg config.ServerConfig, opts Options) (*Client, error) {
	base, err := utils.ParseBaseURL(cfg.HostPort)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid openMetadataServerConfig.hostPort: %v", err))
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.String("client", "ometa"))

	var clientOpts []commonhttp.ClientOption
	if opts.Timeout > 0 {
		clientOpts = append(clientOpts, commonhttp.WithTimeout(opts.Timeout))
	}
	wrapper := commonhttp.NewHTTPClientWrapper(clientOpts...).WithLogger(logger)
	if opts.Retry != nil {
		wrapper = wrapper.WithRetryConfig(opts.Retry)
	}
	if opts.CircuitBreaker {
		wrapper = wrapper.WithCircuitBreaker("ometa")
	}

	if cfg.AuthProvider != AuthProviderNone {
		token := cfg.SecurityConfig.JWTToken
		if err := CheckJWT(token, time.Now()); err != nil {
			return nil, err
		}
		wrapper = wrapper.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	}

	ttl := opts.ServiceCacheTTL
	if ttl <= 0 {
		ttl = DefaultOptions().ServiceCacheTTL
	}

	return &Client{
		baseURL:  base.String() + apiVersion,
		http:     wrapper,
		services: cache.NewLocalCache(ttl, 2*ttl),
		cacheTTL: ttl,
		logger:   logger,
	}, nil
}

// CheckJWT rejects empty, malformed and expired tokens. The signature is not
// verified; that is the server's job.
func CheckJWT(token string, now time.Time) error {
	if token == "" {
		return errors.ConfigError("openMetadataServerConfig.securityConfig.jwtToken is required")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return errors.ConfigError(fmt.Sprintf("invalid JWT token: %v", err))
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return errors.ConfigError(fmt.Sprintf("invalid JWT exp claim: %v", err))
	}
	if exp != nil && !exp.After(now) {
		return errors.ConfigError(fmt.Sprintf("JWT token expired at %s", exp.UTC().Format(time.RFC3339)))
	}
	return nil
}

// GetPipelineServiceByName fetches a pipeline service. Hits are cached.
func (c *Client) GetPipelineServiceByName(ctx context.Context, name string) (*models.PipelineService, error) {
	if cached, ok := c.services.Get(ctx, name); ok {
		if svc, ok := cached.(*models.PipelineService); ok {
			return svc, nil
		}
	}

	var svc models.PipelineService
	if err := c.get(ctx, "/services/pipelineServices/name/"+url.PathEscape(name), &svc); err != nil {
		return nil, err
	}
	c.cacheService(ctx, &svc)
	return &svc, nil
}

// CreateOrUpdatePipelineService upserts a pipeline service
func (c *Client) CreateOrUpdatePipelineService(ctx context.Context, req models.CreatePipelineServiceRequest) (*models.PipelineService, error) {
	var svc models.PipelineService
	if err := c.put(ctx, "/services/pipelineServices", req, &svc); err != nil {
		return nil, fmt.Errorf("failed to create pipeline service %s: %w", req.Name, err)
	}
	c.cacheService(ctx, &svc)
	return &svc, nil
}

// GetOrCreatePipelineService returns the named service, creating it when the registry does not know it
func (c *Client) GetOrCreatePipelineService(ctx context.Context, req models.CreatePipelineServiceRequest) (*models.PipelineService, error) {
	svc, err := c.GetPipelineServiceByName(ctx, req.Name)
	if err == nil {
		return svc, nil
	}
	if !errors.IsType(err, errors.ErrTypeNotFound) {
		return nil, err
	}

	c.logger.Info("Creating pipeline service", logging.String("service", req.Name))
	return c.CreateOrUpdatePipelineService(ctx, req)
}

// CreateOrUpdatePipeline upserts a pipeline
func (c *Client) CreateOrUpdatePipeline(ctx context.Context, req models.CreatePipelineRequest) (*models.Pipeline, error) {
	var p models.Pipeline
	if err := c.put(ctx, "/pipelines", req, &p); err != nil {
		return nil, fmt.Errorf("failed to create pipeline %s: %w", req.Name, err)
	}
	return &p, nil
}

// AddPipelineStatus records one run status of the pipeline identified by fqn
func (c *Client) AddPipelineStatus(ctx context.Context, pipelineFQN string, status models.PipelineStatus) (*models.Pipeline, error) {
	var p models.Pipeline
	if err := c.put(ctx, "/pipelines/"+url.PathEscape(pipelineFQN)+"/status", status, &p); err != nil {
		return nil, fmt.Errorf("failed to add status to pipeline %s: %w", pipelineFQN, err)
	}
	return &p, nil
}

// ListPipelines returns every non-deleted pipeline of a service, following the paging cursor
func (c *Client) ListPipelines(ctx context.Context, serviceFQN string) ([]models.Pipeline, error) {
	all, err := pagination.Collect(ctx, func(ctx context.Context, after string) (pagination.Page[models.Pipeline], error) {
		q := url.Values{}
		q.Set("service", serviceFQN)
		q.Set("limit", fmt.Sprint(listPageSize))
		if after != "" {
			q.Set("after", after)
		}

		var page models.PipelineList
		if err := c.get(ctx, "/pipelines?"+q.Encode(), &page); err != nil {
			return pagination.Page[models.Pipeline]{}, err
		}
		return pagination.Page[models.Pipeline]{Items: page.Data, After: page.Paging.After, Total: page.Paging.Total}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines of %s: %w", serviceFQN, err)
	}
	return all, nil
}

// DeletePipeline soft-deletes a pipeline
func (c *Client) DeletePipeline(ctx context.Context, id string) error {
	if _, err := c.http.Delete(ctx, c.baseURL+"/pipelines/"+url.PathEscape(id)+"?hardDelete=false&recursive=true", nil); err != nil {
		return fmt.Errorf("failed to delete pipeline %s: %w", id, err)
	}
	return nil
}

// AddLineage adds one lineage edge
func (c *Client) AddLineage(ctx context.Context, req models.AddLineageRequest) error {
	if err := c.put(ctx, "/lineage", req, nil); err != nil {
		return fmt.Errorf("failed to add lineage: %w", err)
	}
	return nil
}

func (c *Client) cacheService(ctx context.Context, svc *models.PipelineService) {
	if err := c.services.Set(ctx, svc.Name, svc, c.cacheTTL); err != nil {
		c.logger.Warn("Failed to cache pipeline service", logging.Err(err), logging.String("service", svc.Name))
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.http.Get(ctx, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.InternalError("failed to encode request", err)
	}

	resp, err := c.http.Put(ctx, c.baseURL+path, bytes.NewReader(payload), nil)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.Decode(out)
}
