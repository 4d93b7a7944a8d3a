package ingestion

import (
	"context"
)

// Sink consumes the results produced by a source
type Sink interface {
	// Write delivers r. For a Left it records the failure and returns nil, nil.
	// For a Right it returns the entity the registry stored, if any.
	Write(ctx context.Context, r Result) (any, error)
	Status() *Status
	Close() error
}

// TestConnectionStep is the outcome of one connection check
type TestConnectionStep struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// TestConnectionResult collects the connection checks of a source
type TestConnectionResult struct {
	Steps []TestConnectionStep `json:"steps"`
}

// Passed reports whether every step passed
func (r TestConnectionResult) Passed() bool {
	for _, step := range r.Steps {
		if !step.Passed {
			return false
		}
	}
	return true
}
