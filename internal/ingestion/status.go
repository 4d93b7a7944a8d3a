package ingestion

import (
	"sync"
)

// FilteredRecord is a record skipped by a filter pattern
type FilteredRecord struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Status accumulates the outcome of one workflow step
type Status struct {
	mu       sync.Mutex
	records  []string
	warnings []string
	filtered []FilteredRecord
	failures []StackTraceError
}

// NewStatus creates an empty status
func NewStatus() *Status {
	return &Status{}
}

// Scanned records a successfully processed entity
func (s *Status) Scanned(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, name)
}

// Filter records an entity skipped by configuration
func (s *Status) Filter(name, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filtered = append(s.filtered, FilteredRecord{Name: name, Reason: reason})
}

// Warning records a non-fatal problem
func (s *Status) Warning(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, msg)
}

// Failed records a failed entity
func (s *Status) Failed(err StackTraceError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, err)
}

// Records returns a copy of the processed entity names
func (s *Status) Records() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.records...)
}

// Warnings returns a copy of the warnings
func (s *Status) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

// Filtered returns a copy of the filtered records
func (s *Status) Filtered() []FilteredRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FilteredRecord(nil), s.filtered...)
}

// Failures returns a copy of the failures
func (s *Status) Failures() []StackTraceError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StackTraceError(nil), s.failures...)
}

// SuccessPct returns records / (records + failures) as a percentage.
// A step that saw nothing counts as fully successful.
func (s *Status) SuccessPct() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.records) + len(s.failures)
	if total == 0 {
		return 100
	}
	return float64(len(s.records)) * 100 / float64(total)
}

// Summary is a point-in-time snapshot of a Status
type Summary struct {
	Records  int `json:"records"`
	Warnings int `json:"warnings"`
	Filtered int `json:"filtered"`
	Failures int `json:"failures"`
}

// Summary returns the current counters
func (s *Status) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		Records:  len(s.records),
		Warnings: len(s.warnings),
		Filtered: len(s.filtered),
		Failures: len(s.failures),
	}
}
