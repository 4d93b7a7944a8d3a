package circuitbreaker

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"metadata-ingestion/internal/common/errors"
	"metadata-ingestion/internal/common/logging"
)

func TestBreaker(t *testing.T) {
	logger := logging.NewNopLogger()

	t.Run("closed breaker passes calls through", func(t *testing.T) {
		b := New("domo", DefaultConfig(), logger)

		called := false
		err := b.Execute(context.Background(), func() error {
			called = true
			return nil
		})

		require.NoError(t, err)
		assert.True(t, called)
		assert.False(t, b.Open())
		assert.Equal(t, "closed", b.Counts().State)
	})

	t.Run("opens after consecutive server failures", func(t *testing.T) {
		b := New("registry", Config{MaxFailures: 2, Cooldown: time.Minute, HalfOpenRequests: 1}, logger)
		boom := errors.InternalError("502 from upstream", nil)

		for i := 0; i < 2; i++ {
			err := b.Execute(context.Background(), func() error { return boom })
			assert.ErrorIs(t, err, boom)
		}
		assert.True(t, b.Open())

		err := b.Execute(context.Background(), func() error {
			t.Fatal("must not run while open")
			return nil
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeInternal))
		assert.Contains(t, err.Error(), "circuit breaker 'registry' is open")
	})

	t.Run("client errors do not trip the breaker", func(t *testing.T) {
		b := New("client", Config{MaxFailures: 1, Cooldown: time.Minute, HalfOpenRequests: 1}, logger)

		for i := 0; i < 3; i++ {
			_ = b.Execute(context.Background(), func() error {
				return errors.NotFoundError("pipeline")
			})
		}

		assert.False(t, b.Open())
		counts := b.Counts()
		assert.Equal(t, 3, counts.Requests)
		assert.Equal(t, 0, counts.Failures)
	})

	t.Run("plain errors count as failures", func(t *testing.T) {
		b := New("plain", DefaultConfig(), logger)
		_ = b.Execute(context.Background(), func() error { return stderrors.New("connection reset") })
		assert.Equal(t, 1, b.Counts().ConsecutiveFailures)
	})

	t.Run("cancelled context short-circuits", func(t *testing.T) {
		b := New("ctx", DefaultConfig(), logger)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := b.Execute(ctx, func() error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, b.Counts().Requests)
	})

	t.Run("invalid config falls back to defaults", func(t *testing.T) {
		b := New("invalid", Config{}, logger)
		assert.Equal(t, "invalid", b.Counts().Name)
		assert.False(t, b.Open())
	})
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	err := Config{MaxFailures: 1, Cooldown: time.Second}.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	assert.Contains(t, err.Error(), "half-open requests")
}
