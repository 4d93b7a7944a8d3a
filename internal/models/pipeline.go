// Package models holds the canonical metadata entities exchanged between
// connectors, the sink and the metadata registry.
package models

import (
	"time"
)

// StatusType is the execution status of a pipeline or task run
type StatusType string

const (
	StatusSuccessful StatusType = "Successful"
	StatusFailed     StatusType = "Failed"
	StatusPending    StatusType = "Pending"
	StatusSkipped    StatusType = "Skipped"
)

// PipelineDetails is a vendor-native pipeline record as returned by a vendor client
type PipelineDetails map[string]any

// EntityReference points at another registry entity
type EntityReference struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Name               string `json:"name,omitempty"`
	FullyQualifiedName string `json:"fullyQualifiedName,omitempty"`
}

// Task is a unit of work inside a pipeline
type Task struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
	SourceURL   string `json:"sourceUrl,omitempty"`
}

// CreatePipelineRequest creates or updates a pipeline entity. Name is the
// vendor identifier, never the display name.
type CreatePipelineRequest struct {
	Name        string     `json:"name"`
	DisplayName string     `json:"displayName,omitempty"`
	Description string     `json:"description,omitempty"`
	Tasks       []Task     `json:"tasks"`
	Service     string     `json:"service"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	SourceURL   string     `json:"sourceUrl,omitempty"`
}

// TaskStatus is the outcome of one task in one run. Times are epoch seconds.
type TaskStatus struct {
	Name            string     `json:"name"`
	ExecutionStatus StatusType `json:"executionStatus"`
	StartTime       *int64     `json:"startTime,omitempty"`
	EndTime         *int64     `json:"endTime,omitempty"`
}

// PipelineStatus is the outcome of one pipeline run
type PipelineStatus struct {
	Timestamp       *int64       `json:"timestamp,omitempty"`
	ExecutionStatus StatusType   `json:"executionStatus"`
	TaskStatus      []TaskStatus `json:"taskStatus"`
}

// OMetaPipelineStatus binds a run status to the pipeline it belongs to
type OMetaPipelineStatus struct {
	PipelineFQN    string         `json:"pipelineFqn"`
	PipelineStatus PipelineStatus `json:"pipelineStatus"`
}

// Pipeline is a pipeline entity as stored by the registry
type Pipeline struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	DisplayName        string          `json:"displayName,omitempty"`
	FullyQualifiedName string          `json:"fullyQualifiedName"`
	Description        string          `json:"description,omitempty"`
	Tasks              []Task          `json:"tasks,omitempty"`
	Service            EntityReference `json:"service"`
	SourceURL          string          `json:"sourceUrl,omitempty"`
	Deleted            bool            `json:"deleted,omitempty"`
}

// PipelineList is one page of pipelines
type PipelineList struct {
	Data   []Pipeline `json:"data"`
	Paging Paging     `json:"paging"`
}

// Paging carries registry cursors
type Paging struct {
	After  string `json:"after,omitempty"`
	Before string `json:"before,omitempty"`
	Total  int    `json:"total"`
}
