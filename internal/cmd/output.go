package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/3leaps/prowscope/pkg/output"
)

// createWriter creates a JSONL writer for dest: empty or "stdout" writes to
// standard output, anything else (optionally prefixed with "file:") is a
// file path. Returns the writer and a cleanup function.
func createWriter(dest, command string) (output.Writer, func(), error) {
	if dest == "" || dest == "stdout" {
		w := output.NewJSONLWriter(os.Stdout, runID, command)
		return w, func() { _ = w.Close() }, nil
	}

	path := strings.TrimPrefix(dest, "file:")
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}

	w := output.NewJSONLWriter(f, runID, command)
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
	}
	return w, cleanup, nil
}
