// Package http wraps net/http with retries, circuit breaking, rate limiting
// and OAuth2 token injection for outbound REST calls.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"golang.org/x/oauth2"
	"metadata-ingestion/internal/circuitbreaker"
	"metadata-ingestion/internal/common/errors"
	"metadata-ingestion/internal/common/logging"
	"metadata-ingestion/internal/common/ratelimit"
	"metadata-ingestion/internal/common/utils"
)

// ClientConfig holds HTTP client configuration
type ClientConfig struct {
	Timeout   time.Duration
	Transport http.RoundTripper
}

// ClientOption is a function that modifies ClientConfig
type ClientOption func(*ClientConfig)

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithTransport replaces the default pooled transport
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *ClientConfig) {
		c.Transport = transport
	}
}

// NewHTTPClient creates an http.Client with a 30s timeout and a small
// per-host connection pool, honouring proxy environment variables
func NewHTTPClient(opts ...ClientOption) *http.Client {
	cfg := ClientConfig{Timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Transport == nil {
		cfg.Transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	return &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport}
}

// RetryConfig for HTTP client retry logic
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
	// RetryableStatusCodes are retried in addition to every 5xx
	RetryableStatusCodes []int
}

// DefaultRetryConfig retries three times with exponential backoff from 1s
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:          3,
		InitialDelay:         time.Second,
		MaxDelay:             30 * time.Second,
		BackoffFactor:        2.0,
		JitterFactor:         0.1,
		RetryableStatusCodes: []int{http.StatusRequestTimeout, http.StatusTooManyRequests},
	}
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// Decode unmarshals the body into v. Numbers are kept as json.Number when
// v holds interface{} values so that integral ids keep their exact form.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return errors.ValidationError("empty response body")
	}
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return errors.InternalError("failed to decode response body", err)
	}
	return nil
}

// HTTPClientWrapper wraps http.Client with retries, an optional breaker,
// limiter and token source
type HTTPClientWrapper struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.Breaker
	retryConfig    *RetryConfig
	tokenSource    oauth2.TokenSource
	rateLimiter    ratelimit.Limiter
	logger         logging.Logger
}

// NewHTTPClientWrapper creates a wrapper with default retries and nothing else enabled
func NewHTTPClientWrapper(opts ...ClientOption) *HTTPClientWrapper {
	return &HTTPClientWrapper{
		client:      NewHTTPClient(opts...),
		retryConfig: DefaultRetryConfig(),
		logger:      logging.GetGlobalLogger(),
	}
}

// WithCircuitBreaker guards every attempt with a breaker named after the remote service
func (w *HTTPClientWrapper) WithCircuitBreaker(name string) *HTTPClientWrapper {
	w.circuitBreaker = circuitbreaker.New(name, circuitbreaker.DefaultConfig(), w.logger)
	return w
}

func (w *HTTPClientWrapper) WithRetryConfig(config *RetryConfig) *HTTPClientWrapper {
	w.retryConfig = config
	return w
}

// WithTokenSource authorizes every request with a token from ts
func (w *HTTPClientWrapper) WithTokenSource(ts oauth2.TokenSource) *HTTPClientWrapper {
	w.tokenSource = ts
	return w
}

func (w *HTTPClientWrapper) WithRateLimiter(limiter ratelimit.Limiter) *HTTPClientWrapper {
	w.rateLimiter = limiter
	return w
}

// WithLogger replaces the global logger used for warnings
func (w *HTTPClientWrapper) WithLogger(logger logging.Logger) *HTTPClientWrapper {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// Get performs a GET request
func (w *HTTPClientWrapper) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return w.Do(ctx, http.MethodGet, url, nil, headers)
}

// Post performs a POST request
func (w *HTTPClientWrapper) Post(ctx context.Context, url string, body io.Reader, headers map[string]string) (*Response, error) {
	return w.Do(ctx, http.MethodPost, url, body, headers)
}

// Put performs a PUT request
func (w *HTTPClientWrapper) Put(ctx context.Context, url string, body io.Reader, headers map[string]string) (*Response, error) {
	return w.Do(ctx, http.MethodPut, url, body, headers)
}

// Delete performs a DELETE request
func (w *HTTPClientWrapper) Delete(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return w.Do(ctx, http.MethodDelete, url, nil, headers)
}

// Do sends one logical request. Non-2xx responses are returned together
// with an error classified by errors.FromHTTPStatus.
func (w *HTTPClientWrapper) Do(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*Response, error) {
	if w.rateLimiter != nil {
		if err := w.rateLimiter.Wait(ctx); err != nil {
			return nil, errors.RateLimitError(url)
		}
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = io.ReadAll(body); err != nil {
			return nil, errors.InternalError("failed to read request body", err)
		}
	}

	retry := utils.RetryConfig{
		MaxAttempts:     w.retryConfig.MaxAttempts,
		InitialDelay:    w.retryConfig.InitialDelay,
		MaxDelay:        w.retryConfig.MaxDelay,
		BackoffFactor:   w.retryConfig.BackoffFactor,
		JitterFactor:    w.retryConfig.JitterFactor,
		RetryableErrors: isRetryableError,
	}

	var response *Response
	err := utils.RetryWithBackoff(ctx, retry, func() error {
		var attemptErr error
		response, attemptErr = w.attempt(ctx, method, url, payload, headers)
		return attemptErr
	})
	return response, err
}

func (w *HTTPClientWrapper) attempt(ctx context.Context, method, url string, payload []byte, headers map[string]string) (*Response, error) {
	start := time.Now()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("failed to create request: %v", err))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if w.tokenSource != nil {
		token, err := w.tokenSource.Token()
		if err != nil {
			return nil, errors.AuthError(fmt.Sprintf("failed to get OAuth2 token: %v", err))
		}
		token.SetAuthHeader(req)
	}

	var resp *http.Response
	send := func() error {
		var sendErr error
		if resp, sendErr = w.client.Do(req); sendErr != nil {
			return errors.ConnectionError("request failed", sendErr)
		}
		if w.retryable(resp.StatusCode) {
			// counts against the breaker; the body is still read below
			return errors.InternalError(fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
		}
		return nil
	}
	if w.circuitBreaker != nil {
		err = w.circuitBreaker.Execute(ctx, send)
	} else {
		err = send()
	}
	if resp == nil {
		if err == nil {
			err = errors.ConnectionError("request failed", nil)
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ConnectionError("failed to read response body", err)
	}

	response := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Duration:   time.Since(start),
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return response, nil
	}
	return response, errors.FromHTTPStatus(resp.StatusCode, url, truncate(data), w.retryable(resp.StatusCode))
}

func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

func (w *HTTPClientWrapper) retryable(status int) bool {
	return status >= 500 || slices.Contains(w.retryConfig.RetryableStatusCodes, status)
}

// isRetryableError retries transport failures and retryable status codes only
func isRetryableError(err error) bool {
	switch errors.GetType(err) {
	case errors.ErrTypeConnection, errors.ErrTypeInternal:
		return true
	}
	return false
}

// GetHTTPClient returns the underlying client, e.g. for oauth2.HTTPClient
func (w *HTTPClientWrapper) GetHTTPClient() *http.Client {
	return w.client
}

// GetCircuitBreaker returns the breaker, or nil when none is configured
func (w *HTTPClientWrapper) GetCircuitBreaker() *circuitbreaker.Breaker {
	return w.circuitBreaker
}
