// Package domo is a client for the Domo dataflow API.
package domo

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"metadata-ingestion/internal/common/errors"
	commonhttp "metadata-ingestion/internal/common/http"
	"metadata-ingestion/internal/common/logging"
	"metadata-ingestion/internal/common/ratelimit"
	"metadata-ingestion/internal/common/utils"
	"metadata-ingestion/internal/config/connections"
	"metadata-ingestion/internal/models"
)

const (
	// DeveloperTokenHeader carries the developer access token
	DeveloperTokenHeader = "X-DOMO-Developer-Token"

	dataflowsPath = "/api/dataprocessing/v1/dataflows"
	runsPageLimit = 100
)

// Run is one execution of a dataflow. Times are epoch milliseconds.
type Run struct {
	ID        any    `json:"id,omitempty"`
	BeginTime *int64 `json:"beginTime,omitempty"`
	EndTime   *int64 `json:"endTime,omitempty"`
	State     string `json:"state,omitempty"`
}

// Client talks to one Domo instance
type Client struct {
	baseURL     string
	accessToken string
	oauth       *clientcredentials.Config
	http        *commonhttp.HTTPClientWrapper
	logger      logging.Logger
}

// Options tune the HTTP behaviour of a Client
type Options struct {
	Timeout        time.Duration
	RateLimit      *ratelimit.Config
	CircuitBreaker bool
	Retry          *commonhttp.RetryConfig
	Logger         logging.Logger
}

// DefaultOptions returns the options used by the ingest command
func DefaultOptions() Options {
	rl := ratelimit.DefaultConfig()
	return Options{
		Timeout:        30 * time.Second,
		RateLimit:      &rl,
		CircuitBreaker: true,
	}
}

// NewClient builds a client for conn
func NewClient(conn *connections.DomoPipelineConnection, opts Options) (*Client, error) {
	if conn == nil {
		return nil, errors.ConfigError("domo connection is required")
	}

	base, err := utils.ParseBaseURL(conn.InstanceDomain)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid instanceDomain: %v", err))
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.String("client", "domo"))

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	wrapper := commonhttp.NewHTTPClientWrapper(commonhttp.WithTimeout(timeout)).WithLogger(logger)
	if opts.Retry != nil {
		wrapper.WithRetryConfig(opts.Retry)
	}
	if opts.CircuitBreaker {
		wrapper.WithCircuitBreaker("domo:" + base.Host)
	}
	if opts.RateLimit != nil {
		limiter, err := ratelimit.NewLocalLimiter(*opts.RateLimit)
		if err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("invalid rate limit: %v", err))
		}
		wrapper.WithRateLimiter(limiter)
	}

	c := &Client{
		baseURL:     base.String(),
		accessToken: conn.AccessToken,
		http:        wrapper,
		logger:      logger,
	}

	if conn.ClientID != "" {
		c.oauth = &clientcredentials.Config{
			ClientID:     conn.ClientID,
			ClientSecret: conn.SecretToken,
			TokenURL:     conn.TokenURL(),
			Scopes:       []string{"data"},
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
	}

	return c, nil
}

func (c *Client) headers() map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if c.accessToken != "" {
		h[DeveloperTokenHeader] = c.accessToken
	}
	return h
}

// GetPipelines lists every dataflow of the instance
func (c *Client) GetPipelines(ctx context.Context) ([]models.PipelineDetails, error) {
	resp, err := c.http.Get(ctx, c.baseURL+dataflowsPath, c.headers())
	if err != nil {
		return nil, fmt.Errorf("failed to list dataflows: %w", err)
	}

	var pipelines []models.PipelineDetails
	if err := resp.Decode(&pipelines); err != nil {
		return nil, fmt.Errorf("failed to decode dataflows: %w", err)
	}

	c.logger.Debug("Listed dataflows", logging.Int("count", len(pipelines)))
	return pipelines, nil
}

// GetRuns returns the most recent executions of a dataflow
func (c *Client) GetRuns(ctx context.Context, pipelineID string) ([]Run, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(runsPageLimit))
	q.Set("offset", "0")
	endpoint := fmt.Sprintf("%s%s/%s/executions?%s", c.baseURL, dataflowsPath, url.PathEscape(pipelineID), q.Encode())

	resp, err := c.http.Get(ctx, endpoint, c.headers())
	if err != nil {
		return nil, fmt.Errorf("failed to list executions of dataflow %s: %w", pipelineID, err)
	}

	var runs []Run
	if err := resp.Decode(&runs); err != nil {
		return nil, fmt.Errorf("failed to decode executions of dataflow %s: %w", pipelineID, err)
	}
	return runs, nil
}

// GetToken fetches an OAuth2 token with the client credentials of the connection
func (c *Client) GetToken(ctx context.Context) (*oauth2.Token, error) {
	if c.oauth == nil {
		return nil, errors.ConfigError("clientId and secretToken are required to request a token")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http.GetHTTPClient())
	token, err := c.oauth.Token(ctx)
	if err != nil {
		return nil, errors.AuthError(fmt.Sprintf("failed to get token from %s: %v", c.oauth.TokenURL, err))
	}
	return token, nil
}

// HasClientCredentials reports whether GetToken can be used
func (c *Client) HasClientCredentials() bool {
	return c.oauth != nil
}
