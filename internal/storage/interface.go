// Package storage defines the run ledger: one record per workflow run.
package storage

import (
	"context"
	"time"
)

// RunState is the final state of a workflow run
type RunState string

const (
	RunStateRunning RunState = "running"
	RunStateSuccess RunState = "success"
	RunStateFailed  RunState = "failed"
)

// Run is one workflow run
type Run struct {
	ID             string     `json:"id"`
	ServiceName    string     `json:"serviceName"`
	SourceType     string     `json:"sourceType"`
	State          RunState   `json:"state"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
	Records        int        `json:"records"`
	Warnings       int        `json:"warnings"`
	Filtered       int        `json:"filtered"`
	Failures       int        `json:"failures"`
	SuccessPct     float64    `json:"successPct"`
	RegisteredFQNs []string   `json:"registeredFqns,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// RunStore persists workflow runs
type RunStore interface {
	// StartRun records a new running run and returns it with its generated id
	StartRun(ctx context.Context, serviceName, sourceType string) (*Run, error)

	// FinishRun stores the final counters and state of run
	FinishRun(ctx context.Context, run *Run) error

	// GetRun returns a run by id
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the most recent runs first
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	Close() error
	Health() error
}
