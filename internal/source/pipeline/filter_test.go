package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"metadata-ingestion/internal/config"
)

func TestFilter(t *testing.T) {
	f, err := NewFilter(&config.FilterPattern{
		Includes: []string{"sales", "finance_.*"},
		Excludes: []string{".*_tmp"},
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		filtered bool
	}{
		{"Sales Daily", false},
		{"finance_monthly", false},
		{"sales_tmp", true},
		{"marketing", true},
		{"daily sales", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.filtered, f.Filtered(tt.name), tt.name)
	}
}

func TestFilter_Empty(t *testing.T) {
	f, err := NewFilter(nil)
	require.NoError(t, err)
	assert.False(t, f.Filtered("anything"))
	assert.False(t, f.Filtered(""))
}

func TestFilter_ExcludeOnly(t *testing.T) {
	f, err := NewFilter(&config.FilterPattern{Excludes: []string{"test"}})
	require.NoError(t, err)
	assert.True(t, f.Filtered("TEST_flow"))
	assert.False(t, f.Filtered("prod_flow"))
}
