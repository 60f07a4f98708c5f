// Package prowjob models the Prow job feed and resolves the canonical
// identity of each job from Prow naming conventions.
package prowjob

import (
	"strings"
	"time"
)

// Job type values reported by Prow.
const (
	TypePeriodic   = "periodic"
	TypePresubmit  = "presubmit"
	TypePostsubmit = "postsubmit"
	TypeBatch      = "batch"
)

// Job state values relevant to ingestion.
const (
	StateSuccess = "success"
	StateFailure = "failure"
)

// Labels holds the Prow and ci-operator labels used for identity and
// metadata lookup. Absent labels decode to empty strings.
type Labels struct {
	Cloud               string `json:"ci-operator.openshift.io/cloud,omitempty"`
	CloudClusterProfile string `json:"ci-operator.openshift.io/cloud-cluster-profile,omitempty"`
	Variant             string `json:"ci-operator.openshift.io/variant,omitempty"`
	RefsBaseRef         string `json:"prow.k8s.io/refs.base_ref,omitempty"`
	RefsOrg             string `json:"prow.k8s.io/refs.org,omitempty"`
	RefsPull            string `json:"prow.k8s.io/refs.pull,omitempty"`
	RefsRepo            string `json:"prow.k8s.io/refs.repo,omitempty"`
}

// Metadata is the object metadata of a job record.
type Metadata struct {
	Labels Labels `json:"labels"`
}

// Ref is a repository reference attached to a job.
type Ref struct {
	Org     string `json:"org"`
	Repo    string `json:"repo"`
	BaseRef string `json:"base_ref"`
}

// Spec is the declared configuration of a job.
type Spec struct {
	Job       string `json:"job"`
	Type      string `json:"type"`
	Hidden    bool   `json:"hidden,omitempty"`
	ExtraRefs []Ref  `json:"extra_refs,omitempty"`
}

// Status is the observed execution status of a job.
type Status struct {
	State          string     `json:"state,omitempty"`
	URL            string     `json:"url,omitempty"`
	StartTime      *time.Time `json:"startTime,omitempty"`
	PendingTime    *time.Time `json:"pendingTime,omitempty"`
	CompletionTime *time.Time `json:"completionTime,omitempty"`
	BuildID        string     `json:"build_id,omitempty"`
	Description    string     `json:"description,omitempty"`
}

// CIResource describes the machine a job ran on, as recorded by the CI
// resource allocator. Region, Hostname and OS are filled in from the
// provider-specific metadata document.
type CIResource struct {
	IP           string `json:"ip,omitempty"`
	Name         string `json:"name,omitempty"`
	Pool         string `json:"pool,omitempty"`
	Provider     string `json:"provider,omitempty"`
	ProviderInfo string `json:"providerInfo,omitempty"`
	Type         string `json:"type,omitempty"`
	Region       string `json:"region,omitempty"`
	Hostname     string `json:"hostname,omitempty"`
	OS           string `json:"os,omitempty"`
}

// Job is a single record from the Prow job feed.
//
// Fields decoded from the feed are treated as read-only. Context is set once
// by the scraper after identity resolution, and CIResource is attached by the
// hydrator.
type Job struct {
	Metadata Metadata `json:"metadata"`
	Spec     Spec     `json:"spec"`
	Status   Status   `json:"status"`

	Context    string      `json:"-"`
	CIResource *CIResource `json:"-"`
}

// Name returns the job name.
func (j *Job) Name() string {
	return j.Spec.Job
}

// BuildID returns the build identifier of this execution.
func (j *Job) BuildID() string {
	return j.Status.BuildID
}

// Duration returns the wall-clock duration of the execution, or zero when
// either timestamp is missing.
func (j *Job) Duration() time.Duration {
	if j.Status.StartTime == nil || j.Status.CompletionTime == nil {
		return 0
	}
	return j.Status.CompletionTime.Sub(*j.Status.StartTime)
}

// IsRehearsal reports whether the job is a release-repo rehearsal of
// another job.
func (j *Job) IsRehearsal() bool {
	return strings.HasPrefix(j.Spec.Job, rehearsePrefix)
}

// JobList is the payload served by the Prow job listing endpoint.
type JobList struct {
	Items []*Job `json:"items"`
}
