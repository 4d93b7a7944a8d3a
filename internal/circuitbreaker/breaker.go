// Package circuitbreaker guards outbound REST calls with sony/gobreaker.
//
// Only server-side failures count: a 404 for an unknown pipeline or a 401 for
// a bad developer token says nothing about the health of the remote service.
package circuitbreaker

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"metadata-ingestion/internal/common/errors"
	"metadata-ingestion/internal/common/logging"
)

// Config controls when a breaker trips and how it recovers
type Config struct {
	// MaxFailures consecutive server failures open the breaker
	MaxFailures int
	// Cooldown is how long the breaker stays open before letting trial requests through
	Cooldown time.Duration
	// HalfOpenRequests is the number of requests let through while half-open
	HalfOpenRequests int
}

// DefaultConfig suits a single ingestion run against one vendor API
func DefaultConfig() Config {
	return Config{
		MaxFailures:      3,
		Cooldown:         30 * time.Second,
		HalfOpenRequests: 2,
	}
}

// Validate rejects non-positive settings
func (c Config) Validate() error {
	switch {
	case c.MaxFailures <= 0:
		return errors.ConfigError(fmt.Sprintf("circuit breaker max failures must be positive, got %d", c.MaxFailures))
	case c.Cooldown <= 0:
		return errors.ConfigError(fmt.Sprintf("circuit breaker cooldown must be positive, got %v", c.Cooldown))
	case c.HalfOpenRequests <= 0:
		return errors.ConfigError(fmt.Sprintf("circuit breaker half-open requests must be positive, got %d", c.HalfOpenRequests))
	}
	return nil
}

// Counts is a snapshot of the breaker's current window
type Counts struct {
	Name                string
	State               string
	Requests            int
	Failures            int
	ConsecutiveFailures int
}

// Breaker wraps one gobreaker.CircuitBreaker per remote service
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// New builds a breaker named after the service it guards. An invalid config
// is replaced by DefaultConfig.
func New(name string, config Config, logger logging.Logger) *Breaker {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if err := config.Validate(); err != nil {
		logger.Warn("Invalid circuit breaker config, using defaults",
			logging.String("breaker", name),
			logging.String("error", err.Error()),
		)
		config = DefaultConfig()
	}

	maxFailures := uint32(config.MaxFailures)
	return &Breaker{
		name: name,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: uint32(config.HalfOpenRequests),
			Timeout:     config.Cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Info("Circuit breaker state changed",
					logging.String("breaker", name),
					logging.String("from", from.String()),
					logging.String("to", to.String()),
				)
			},
			IsSuccessful: countsAsSuccess,
		}),
	}
}

func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	switch errors.GetType(err) {
	case errors.ErrTypeValidation, errors.ErrTypeNotFound, errors.ErrTypeAuth:
		return true
	}
	return false
}

// Execute runs fn unless the breaker is open. Rejections surface as internal
// errors naming the breaker.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	switch {
	case stderrors.Is(err, gobreaker.ErrOpenState):
		return errors.InternalError(fmt.Sprintf("circuit breaker '%s' is open", b.name), err)
	case stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return errors.InternalError(fmt.Sprintf("circuit breaker '%s' is half-open and busy", b.name), err)
	}
	return err
}

// Open reports whether calls are currently rejected
func (b *Breaker) Open() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// Counts returns the breaker's current counters
func (b *Breaker) Counts() Counts {
	c := b.cb.Counts()
	return Counts{
		Name:                b.name,
		State:               b.cb.State().String(),
		Requests:            int(c.Requests),
		Failures:            int(c.TotalFailures),
		ConsecutiveFailures: int(c.ConsecutiveFailures),
	}
}
