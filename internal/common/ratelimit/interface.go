// Package ratelimit throttles outbound calls to vendor APIs.
package ratelimit

import (
	"context"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Wait blocks until a request can be made or ctx is done
	Wait(ctx context.Context) error
	// TryAcquire takes a token without blocking
	TryAcquire() bool
	// Stats returns limiter counters for logging
	Stats() map[string]interface{}
}
