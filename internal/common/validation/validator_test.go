package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"metadata-ingestion/internal/common/errors"
)

type filterPattern struct {
	Includes []string `yaml:"includes" validate:"dive,regexp"`
}

type sample struct {
	Name      string        `yaml:"serviceName" validate:"required"`
	Schedule  string        `yaml:"schedule" validate:"omitempty,cron_expression"`
	Threshold int           `yaml:"successThreshold" validate:"gte=0,lte=100"`
	Timeout   string        `yaml:"timeout" validate:"omitempty,duration"`
	Filter    filterPattern `yaml:"pipelineFilterPattern"`
}

func TestValidateStruct_Valid(t *testing.T) {
	s := sample{
		Name:      "domo",
		Schedule:  "*/5 * * * *",
		Threshold: 90,
		Timeout:   "30s",
		Filter:    filterPattern{Includes: []string{"^sales.*"}},
	}
	assert.NoError(t, ValidateStruct(s))

	s.Schedule = "@hourly"
	assert.NoError(t, ValidateStruct(s))
}

func TestValidateStruct_UsesYAMLNames(t *testing.T) {
	err := ValidateStruct(sample{Threshold: 90})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	assert.Contains(t, err.Error(), "field 'serviceName' is required")
}

func TestValidateStruct_JoinsIssues(t *testing.T) {
	err := ValidateStruct(sample{Threshold: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed: ")
	assert.Contains(t, err.Error(), "field 'serviceName' is required; field 'successThreshold' must be greater than or equal to 0")
}

func TestValidateStruct_CustomTags(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*sample)
		message string
	}{
		{"bad cron", func(s *sample) { s.Schedule = "every minute" }, "'schedule' must be a valid cron expression"},
		{"bad regexp", func(s *sample) { s.Filter.Includes = []string{"("} }, "must be a valid regular expression"},
		{"bad duration", func(s *sample) { s.Timeout = "soon" }, "'timeout' must be a valid duration"},
		{"threshold range", func(s *sample) { s.Threshold = 150 }, "'successThreshold' must be less than or equal to 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sample{Name: "domo", Threshold: 90}
			tt.mutate(&s)
			err := ValidateStruct(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestIssues(t *testing.T) {
	found := Issues(sample{Threshold: -1})
	require.Len(t, found, 2)
	assert.Equal(t, "serviceName", found[0].Field)
	assert.Equal(t, "required", found[0].Tag)
	assert.Equal(t, "gte", found[1].Tag)
	assert.Equal(t, "0", found[1].Param)

	assert.Nil(t, Issues(sample{Name: "x"}))
}

func TestIssues_NestedPath(t *testing.T) {
	found := Issues(sample{Name: "x", Filter: filterPattern{Includes: []string{"["}}})
	require.Len(t, found, 1)
	assert.Equal(t, "pipelineFilterPattern.includes[0]", found[0].Field)
}

func TestValidateVar(t *testing.T) {
	assert.NoError(t, ValidateVar("0 3 * * *", "cron_expression"))
	assert.Error(t, ValidateVar("61 * * * *", "cron_expression"))
	assert.NoError(t, ValidateVar("api.domo.com", "hostname"))
	assert.Error(t, ValidateVar("", "required"))
}
