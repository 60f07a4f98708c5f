package match

import (
	"fmt"
	"strings"

	"github.com/3leaps/prowscope/pkg/prowjob"
)

// overriddenMarker flags builds whose status was overridden from GitHub; their
// URL points to GitHub rather than to the job artifacts.
const overriddenMarker = "Overridden"

// Reason explains why a job was rejected.
type Reason string

// Rejection reasons.
const (
	ReasonAccepted   Reason = ""
	ReasonHidden     Reason = "hidden"
	ReasonState      Reason = "state"
	ReasonName       Reason = "name"
	ReasonOverridden Reason = "overridden"
)

// JobFilter keeps visible, finished jobs whose name matches a Matcher.
type JobFilter struct {
	names  *Matcher
	states map[string]struct{}
}

// NewJobFilter returns a JobFilter using names. Nil names uses Default.
func NewJobFilter(names *Matcher) *JobFilter {
	if names == nil {
		names = Default()
	}
	return &JobFilter{
		names: names,
		states: map[string]struct{}{
			prowjob.StateSuccess: {},
			prowjob.StateFailure: {},
		},
	}
}

// Evaluate returns the reason j is rejected, or ReasonAccepted.
func (f *JobFilter) Evaluate(j *prowjob.Job) Reason {
	switch {
	case j.Spec.Hidden:
		return ReasonHidden
	case !f.accepts(j.Status.State):
		return ReasonState
	case !f.names.Match(j.Spec.Job):
		return ReasonName
	case strings.Contains(j.Status.Description, overriddenMarker):
		return ReasonOverridden
	}
	return ReasonAccepted
}

// Match reports whether j passes the filter.
func (f *JobFilter) Match(j *prowjob.Job) bool {
	return f.Evaluate(j) == ReasonAccepted
}

func (f *JobFilter) accepts(state string) bool {
	_, ok := f.states[state]
	return ok
}

// String returns a human-readable description of the filter.
func (f *JobFilter) String() string {
	return fmt.Sprintf("jobs(include=%v, exclude=%v)", f.names.includes, f.names.excludes)
}
