package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/3leaps/prowscope/pkg/event"
)

// Writer outputs JSONL records.
//
// Implementations must be safe for concurrent use from multiple
// goroutines. Each Write* method emits a complete record as a
// single line of JSON followed by a newline.
type Writer interface {
	// WriteJob emits a job event record.
	WriteJob(ctx context.Context, job *event.JobEvent) error

	// WriteStep emits a step event record.
	WriteStep(ctx context.Context, step *event.StepEvent) error

	// WriteUsage emits a machine usage event record.
	WriteUsage(ctx context.Context, usage *event.UsageEvent) error

	// WriteReport emits a report record. The payload is any JSON value.
	WriteReport(ctx context.Context, report any) error

	// WriteDuplicate emits a duplicate document record.
	WriteDuplicate(ctx context.Context, dup *DuplicateRecord) error

	// WriteError emits an error record.
	WriteError(ctx context.Context, err *ErrorRecord) error

	// WriteSummary emits a summary record.
	WriteSummary(ctx context.Context, sum *SummaryRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use. Writes are serialized using
// a mutex to ensure atomic line writes (no interleaved output).
type JSONLWriter struct {
	w       io.Writer
	runID   string
	command string
	mu      sync.Mutex

	// closed indicates the writer has been closed.
	closed bool
}

// NewJSONLWriter creates a new JSONL writer.
//
// Parameters:
//   - w: The underlying writer (stdout, file, etc.)
//   - runID: Correlation ID for this run
//   - command: Name of the command producing the records
func NewJSONLWriter(w io.Writer, runID, command string) *JSONLWriter {
	return &JSONLWriter{
		w:       w,
		runID:   runID,
		command: command,
	}
}

// WriteJob emits a job event record.
func (jw *JSONLWriter) WriteJob(ctx context.Context, job *event.JobEvent) error {
	return jw.writeRecord(ctx, TypeJob, job)
}

// WriteStep emits a step event record.
func (jw *JSONLWriter) WriteStep(ctx context.Context, step *event.StepEvent) error {
	return jw.writeRecord(ctx, TypeStep, step)
}

// WriteUsage emits a machine usage event record.
func (jw *JSONLWriter) WriteUsage(ctx context.Context, usage *event.UsageEvent) error {
	return jw.writeRecord(ctx, TypeUsage, usage)
}

// WriteReport emits a report record.
func (jw *JSONLWriter) WriteReport(ctx context.Context, report any) error {
	return jw.writeRecord(ctx, TypeReport, report)
}

// WriteDuplicate emits a duplicate document record.
func (jw *JSONLWriter) WriteDuplicate(ctx context.Context, dup *DuplicateRecord) error {
	return jw.writeRecord(ctx, TypeDuplicate, dup)
}

// WriteError emits an error record.
func (jw *JSONLWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, err)
}

// WriteSummary emits a summary record.
func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

// Close marks the writer as closed.
//
// If the underlying writer implements io.Closer, it is NOT closed.
// The caller is responsible for closing the underlying writer.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

// writeRecord marshals data and writes a complete record line.
//
// This method holds the mutex for the entire operation to ensure
// atomic line writes.
func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Marshal the data payload outside the lock
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	record := Record{
		Type:    recordType,
		TS:      time.Now().UTC(),
		RunID:   jw.runID,
		Command: jw.command,
		Data:    dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// io.Writer may return n < len(p) with a nil error, which would
	// silently truncate JSONL lines.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}

	return nil
}

// writeAll writes all bytes to w, handling short writes.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			// No progress made - avoid infinite loop
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// Compile-time check that JSONLWriter implements Writer.
var _ Writer = (*JSONLWriter)(nil)
