package utils

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig holds configuration for retry operations with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial attempt)
	MaxAttempts int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay caps exponential growth
	MaxDelay time.Duration

	// BackoffFactor is the multiplier applied to the delay after each attempt
	BackoffFactor float64

	// JitterFactor adds randomness to delays (0.0-1.0)
	JitterFactor float64

	// RetryableErrors decides which errors trigger a retry. Nil retries everything.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns the retry policy used for vendor and registry calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
		RetryableErrors: func(err error) bool {
			return true
		},
	}
}

// RetryWithBackoff runs fn until it succeeds, returns a non-retryable error,
// exhausts MaxAttempts or ctx is cancelled.
//
// The delay between attempts follows InitialDelay * BackoffFactor^attempt,
// capped at MaxDelay, plus up to JitterFactor of random jitter.
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if config.RetryableErrors != nil && !config.RetryableErrors(err) {
			return err
		}

		if attempt == config.MaxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		delay = nextDelay(delay, config)
	}

	if lastErr == nil {
		return fmt.Errorf("max retries exceeded: no attempts made")
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func nextDelay(current time.Duration, config RetryConfig) time.Duration {
	factor := config.BackoffFactor
	if factor <= 0 {
		factor = 1
	}

	next := time.Duration(float64(current) * factor)
	if config.MaxDelay > 0 && next > config.MaxDelay {
		next = config.MaxDelay
	}

	if config.JitterFactor > 0 {
		jitter := int64(float64(next) * config.JitterFactor)
		if jitter > 0 {
			next += time.Duration(rand.Int64N(jitter))
		}
	}

	return next
}
