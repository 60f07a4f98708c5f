// Package match selects the Prow jobs worth ingesting: job names are
// matched against glob allow and deny lists, and job records are filtered on
// visibility, state and description.
package match

import (
	"errors"

	"github.com/bmatcuk/doublestar/v4"
)

// Default name patterns.
var (
	DefaultIncludes = []string{"*openshift*assisted*"}
	DefaultExcludes = []string{"*openshift-release-fast-forward*"}
)

// Matcher evaluates glob patterns against job names.
//
// A name matches when it matches at least one include pattern and no exclude
// pattern. The Matcher is safe for concurrent use after creation.
type Matcher struct {
	includes []string
	excludes []string
}

// Config configures a Matcher.
type Config struct {
	// Includes are glob patterns that names must match (at least one).
	Includes []string

	// Excludes are glob patterns that names must not match (any).
	Excludes []string
}

// Errors returned by Matcher operations.
var (
	// ErrNoIncludes is returned when no include patterns are provided.
	ErrNoIncludes = errors.New("at least one include pattern is required")

	// ErrInvalidPattern is returned when a pattern cannot be compiled.
	ErrInvalidPattern = errors.New("invalid glob pattern")
)

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// New creates a new Matcher from the given configuration.
func New(cfg Config) (*Matcher, error) {
	if len(cfg.Includes) == 0 {
		return nil, ErrNoIncludes
	}

	includes, err := compile(cfg.Includes)
	if err != nil {
		return nil, err
	}
	excludes, err := compile(cfg.Excludes)
	if err != nil {
		return nil, err
	}

	return &Matcher{includes: includes, excludes: excludes}, nil
}

// Default returns the Matcher for assisted installer jobs.
func Default() *Matcher {
	return &Matcher{includes: DefaultIncludes, excludes: DefaultExcludes}
}

func compile(raw []string) ([]string, error) {
	patterns := make([]string, 0, len(raw))
	for _, p := range raw {
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p, Err: ErrInvalidPattern}
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// Match returns true if name matches the include/exclude patterns.
func (m *Matcher) Match(name string) bool {
	matched := false
	for _, inc := range m.includes {
		if matchPattern(inc, name) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	for _, exc := range m.excludes {
		if matchPattern(exc, name) {
			return false
		}
	}
	return true
}

// IncludePatterns returns the include patterns.
func (m *Matcher) IncludePatterns() []string {
	return append([]string(nil), m.includes...)
}

// ExcludePatterns returns the exclude patterns.
func (m *Matcher) ExcludePatterns() []string {
	return append([]string(nil), m.excludes...)
}

// matchPattern matches a validated pattern. Errors cannot occur because
// patterns are validated in New.
func matchPattern(pattern, name string) bool {
	matched, _ := doublestar.Match(pattern, name)
	return matched
}
