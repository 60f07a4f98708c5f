// Package event defines the documents stored in the event store and their
// construction from scraped jobs, steps and usages.
package event

import (
	"time"

	"github.com/3leaps/prowscope/pkg/prowjob"
	"github.com/3leaps/prowscope/pkg/step"
	"github.com/3leaps/prowscope/pkg/usage"
)

// Refs is the repository reference of a job.
type Refs struct {
	BaseRef string `json:"base_ref,omitempty"`
	Org     string `json:"org,omitempty"`
	Pull    string `json:"pull,omitempty"`
	Repo    string `json:"repo,omitempty"`
}

// JobDetails is the stored projection of a job execution.
type JobDetails struct {
	BuildID             string              `json:"build_id"`
	CloudClusterProfile string              `json:"cloud_cluster_profile,omitempty"`
	Cloud               string              `json:"cloud,omitempty"`
	Context             string              `json:"context,omitempty"`
	Duration            int64               `json:"duration"`
	CIResource          *prowjob.CIResource `json:"cir,omitempty"`
	Name                string              `json:"name"`
	Refs                Refs                `json:"refs"`
	StartTime           *time.Time          `json:"start_time,omitempty"`
	State               string              `json:"state,omitempty"`
	Type                string              `json:"type"`
	URL                 string              `json:"url,omitempty"`
	Variant             string              `json:"variant,omitempty"`
}

// JobEvent is the document indexed for each job execution.
type JobEvent struct {
	Job JobDetails `json:"job"`
}

// StepDetails is the stored projection of a step.
type StepDetails struct {
	Details  string `json:"details,omitempty"`
	Duration int64  `json:"duration"`
	Name     string `json:"name"`
	State    string `json:"state"`
}

// StepEvent is the document indexed for each executed step.
type StepEvent struct {
	Job  JobDetails  `json:"job"`
	Step StepDetails `json:"step"`
}

// UsageJob links a usage to the job build that leased the machine.
type UsageJob struct {
	BuildID string `json:"build_id"`
}

// UsageEvent is the document indexed for each machine usage.
type UsageEvent struct {
	Job   UsageJob    `json:"job"`
	Usage usage.Usage `json:"usage"`
}

// NewJobDetails projects a job. Duration is in whole seconds.
func NewJobDetails(j *prowjob.Job) JobDetails {
	l := j.Metadata.Labels
	return JobDetails{
		BuildID:             j.Status.BuildID,
		CloudClusterProfile: l.CloudClusterProfile,
		Cloud:               l.Cloud,
		Context:             j.Context,
		Duration:            int64(j.Duration() / time.Second),
		CIResource:          j.CIResource,
		Name:                j.Spec.Job,
		Refs: Refs{
			BaseRef: l.RefsBaseRef,
			Org:     l.RefsOrg,
			Pull:    l.RefsPull,
			Repo:    l.RefsRepo,
		},
		StartTime: j.Status.StartTime,
		State:     j.Status.State,
		Type:      j.Spec.Type,
		URL:       j.Status.URL,
		Variant:   l.Variant,
	}
}

// NewJobEvent builds the event of a job.
func NewJobEvent(j *prowjob.Job) JobEvent {
	return JobEvent{Job: NewJobDetails(j)}
}

// NewStepEvent builds the event of a step.
func NewStepEvent(s step.Step) StepEvent {
	details := NewJobDetails(s.Job)
	// Machine metadata is only kept on job events.
	details.CIResource = nil
	return StepEvent{
		Job: details,
		Step: StepDetails{
			Details:  s.Details,
			Duration: int64(s.Duration / time.Second),
			Name:     s.Name,
			State:    s.State,
		},
	}
}

// NewUsageEvent builds the event of a machine usage.
func NewUsageEvent(u usage.Usage) UsageEvent {
	return UsageEvent{Job: UsageJob{BuildID: u.JobBuildID()}, Usage: u}
}
