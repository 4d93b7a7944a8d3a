package ratelimit

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// localLimiter implements rate limiting using golang.org/x/time/rate
type localLimiter struct {
	config  Config
	limiter *rate.Limiter

	allowed  atomic.Int64
	rejected atomic.Int64
}

// NewLocalLimiter creates a new in-process token bucket limiter
func NewLocalLimiter(config Config) (Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	rl := &localLimiter{config: config}
	if config.Enabled {
		rl.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.BurstSize)
	}

	return rl, nil
}

// Wait blocks until a request can be made according to the rate limit
func (rl *localLimiter) Wait(ctx context.Context) error {
	if rl.limiter == nil {
		rl.allowed.Add(1)
		return nil
	}
	if err := rl.limiter.Wait(ctx); err != nil {
		rl.rejected.Add(1)
		return err
	}
	rl.allowed.Add(1)
	return nil
}

// TryAcquire attempts to acquire a token without blocking
func (rl *localLimiter) TryAcquire() bool {
	if rl.limiter == nil || rl.limiter.Allow() {
		rl.allowed.Add(1)
		return true
	}
	rl.rejected.Add(1)
	return false
}

// Stats returns the limiter configuration and counters
func (rl *localLimiter) Stats() map[string]interface{} {
	return map[string]interface{}{
		"enabled":             rl.config.Enabled,
		"requests_per_second": rl.config.RequestsPerSecond,
		"burst_size":          rl.config.BurstSize,
		"allowed":             rl.allowed.Load(),
		"rejected":            rl.rejected.Load(),
	}
}
