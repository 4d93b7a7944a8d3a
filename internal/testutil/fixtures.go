// Package testutil provides fake Domo and metadata registry servers and shared fixtures.
package testutil

import (
	"encoding/json"
)

// TestFixtures provides common Domo test data
type TestFixtures struct {
	Pipelines []map[string]any
	Runs      map[string][]map[string]any
}

// NewTestFixtures creates a new set of test fixtures
func NewTestFixtures() *TestFixtures {
	return &TestFixtures{
		Pipelines: []map[string]any{
			{
				"id":          json.Number("42"),
				"name":        "Sales Daily",
				"description": "Aggregates sales",
				"created":     json.Number("1700000000000"),
			},
			{
				"id":   "abc-7",
				"name": "tmp_flow",
			},
			{
				"name": "Broken Flow",
			},
		},
		Runs: map[string][]map[string]any{
			"42": {
				{"beginTime": 1700000000000, "endTime": 1700000600000, "state": "SUCCESS"},
				{"beginTime": 1700003600000, "endTime": 1700003700000, "state": "failure"},
				{"beginTime": 1700007200000, "state": "queued"},
			},
			"abc-7": {},
		},
	}
}
