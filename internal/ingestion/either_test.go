package ingestion

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEither(t *testing.T) {
	r := Right("pipeline")
	assert.False(t, r.IsLeft())
	assert.Equal(t, "pipeline", r.Value())
	assert.Nil(t, r.Failure())

	l := Left[string](&StackTraceError{Name: "p", Error: "boom"})
	assert.True(t, l.IsLeft())
	assert.Nil(t, l.Value())
	require.NotNil(t, l.Failure())
	assert.Equal(t, "boom", l.Failure().Error)

	var res Result = r
	assert.Equal(t, "pipeline", res.Value())
}

func TestNewStackTraceError(t *testing.T) {
	ste := NewStackTraceError("flow", "Wild error ingesting pipeline flow - bad", errors.New("bad"))
	assert.Equal(t, "flow", ste.Name)
	assert.Equal(t, "Wild error ingesting pipeline flow - bad", ste.Error)
	assert.Contains(t, ste.StackTrace, "TestNewStackTraceError")

	withStack := pkgerrors.New("inner")
	ste = NewStackTraceError("flow", "msg", withStack)
	assert.Equal(t, "msg", ste.Error)
	assert.Contains(t, ste.StackTrace, "inner")

	ste = NewStackTraceError("flow", "no cause", nil)
	assert.Contains(t, ste.StackTrace, "no cause")
}
