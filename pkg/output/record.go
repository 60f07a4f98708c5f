// Package output provides JSONL output for dry runs.
//
// Output is structured as typed record envelopes containing the documents
// that would have been written, reports, duplicates, errors and summaries.
// Each line is a self-contained JSON object that can be parsed
// independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: prowscope.<type>.v<version>
const (
	// TypeJob identifies job event records.
	TypeJob = "prowscope.job.v1"

	// TypeStep identifies step event records.
	TypeStep = "prowscope.step.v1"

	// TypeUsage identifies machine usage event records.
	TypeUsage = "prowscope.usage.v1"

	// TypeReport identifies report records.
	TypeReport = "prowscope.report.v1"

	// TypeDuplicate identifies duplicate document records.
	TypeDuplicate = "prowscope.duplicate.v1"

	// TypeError identifies error records.
	TypeError = "prowscope.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "prowscope.summary.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line of JSONL output contains a Record with a type-specific
// payload in the Data field. The type field determines how to
// interpret the Data payload.
type Record struct {
	// Type identifies the record type (e.g., "prowscope.job.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// RunID is the correlation ID of the command run.
	RunID string `json:"run_id"`

	// Command is the command that produced the record (e.g., "scrape").
	Command string `json:"command"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// DuplicateRecord is the data payload for duplicate documents.
type DuplicateRecord struct {
	// Index is the index holding the documents.
	Index string `json:"index"`

	// ID is the document that would be deleted.
	ID string `json:"id"`

	// Original is the document kept in its place.
	Original string `json:"original"`

	// Fields are the compared fields.
	Fields []string `json:"fields"`
}

// ErrorRecord is the data payload for errors.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Details contains additional error context.
	Details any `json:"details,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeUnavailable indicates a backend could not be reached.
	ErrCodeUnavailable = "UNAVAILABLE"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// SummaryRecord is the data payload for final summaries.
//
// A summary record is emitted at the end of a run with aggregate
// statistics.
type SummaryRecord struct {
	// Counts holds named counters (e.g., "jobs", "steps").
	Counts map[string]int `json:"counts"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`

	// DryRun reports whether writes were suppressed.
	DryRun bool `json:"dry_run"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
