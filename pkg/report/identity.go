// Package report computes windowed health metrics over stored job and step
// events: per-type buckets, top-N rankings, flakiness and machine leases.
package report

import (
	"github.com/3leaps/prowscope/pkg/event"
)

// JobIdentifier is the identity of a job across its executions.
//
// Two identifiers are equal when their names are equal; the other fields
// are descriptive and come from the first execution seen.
type JobIdentifier struct {
	Name       string `json:"name"`
	Repository string `json:"repository,omitempty"`
	BaseRef    string `json:"base_ref,omitempty"`
	Context    string `json:"context,omitempty"`
	Variant    string `json:"variant,omitempty"`
}

// NewJobIdentifier returns the identifier of a stored job.
func NewJobIdentifier(j event.JobDetails) JobIdentifier {
	return JobIdentifier{
		Name:       j.Name,
		Repository: j.Refs.Repo,
		BaseRef:    j.Refs.BaseRef,
		Context:    j.Context,
		Variant:    j.Variant,
	}
}

// Key returns the grouping key of the identifier.
func (id JobIdentifier) Key() string {
	return id.Name
}

// Equal reports whether id and other identify the same job. Only names are
// compared: executions with drifting labels still group together.
func (id JobIdentifier) Equal(other JobIdentifier) bool {
	return id.Name == other.Name
}

// SlackName returns the chart label of the identifier:
// "{repo}/{base_ref}<br>[{variant}-]{context}". Without a context the name
// is used as is.
func (id JobIdentifier) SlackName(displayVariant bool) string {
	if id.Context == "" {
		return id.Name
	}
	if id.Variant == "" || !displayVariant {
		return id.Repository + "/" + id.BaseRef + "<br>" + id.Context
	}
	return id.Repository + "/" + id.BaseRef + "<br>" + id.Variant + "-" + id.Context
}

// IsVariantUnique reports whether the identifiers do not all share the same
// variant, in which case the variant is worth displaying.
func IsVariantUnique(ids []JobIdentifier) bool {
	variants := make(map[string]struct{})
	for _, id := range ids {
		variants[id.Variant] = struct{}{}
	}
	return len(variants) != 1
}
