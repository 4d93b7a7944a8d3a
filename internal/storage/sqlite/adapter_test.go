package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"metadata-ingestion/internal/common/errors"
	"metadata-ingestion/internal/storage"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(&Config{DatabasePath: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func TestNewAdapter_RequiresPath(t *testing.T) {
	_, err := NewAdapter(&Config{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestAdapter_RunLifecycle(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	require.NoError(t, adapter.Health())

	run, err := adapter.StartRun(ctx, "domo_prod", "domopipeline")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, storage.RunStateRunning, run.State)

	stored, err := adapter.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunStateRunning, stored.State)
	assert.Nil(t, stored.FinishedAt)
	assert.Empty(t, stored.RegisteredFQNs)

	run.State = storage.RunStateSuccess
	run.Records = 4
	run.Failures = 1
	run.Filtered = 2
	run.SuccessPct = 80
	run.RegisteredFQNs = []string{"domo_prod.42", "domo_prod.abc-7"}
	require.NoError(t, adapter.FinishRun(ctx, run))

	stored, err = adapter.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunStateSuccess, stored.State)
	assert.Equal(t, 4, stored.Records)
	assert.Equal(t, 1, stored.Failures)
	assert.Equal(t, 2, stored.Filtered)
	assert.InDelta(t, 80.0, stored.SuccessPct, 0.001)
	assert.Equal(t, []string{"domo_prod.42", "domo_prod.abc-7"}, stored.RegisteredFQNs)
	require.NotNil(t, stored.FinishedAt)
	assert.False(t, stored.FinishedAt.Before(stored.StartedAt))
}

func TestAdapter_GetRun_NotFound(t *testing.T) {
	adapter := newTestAdapter(t)

	_, err := adapter.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestAdapter_FinishRun_Unknown(t *testing.T) {
	adapter := newTestAdapter(t)

	err := adapter.FinishRun(context.Background(), &storage.Run{ID: "missing", State: storage.RunStateFailed})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestAdapter_ListRuns(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := adapter.StartRun(ctx, "domo_prod", "domopipeline")
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := adapter.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)

	all, err := adapter.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAdapter_ReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	first, err := NewAdapter(&Config{DatabasePath: path})
	require.NoError(t, err)
	run, err := first.StartRun(ctx, "domo_prod", "domopipeline")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewAdapter(&Config{DatabasePath: path})
	require.NoError(t, err)
	defer second.Close()

	stored, err := second.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "domo_prod", stored.ServiceName)
}
