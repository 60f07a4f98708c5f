package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/prowscope/pkg/event"
	"github.com/3leaps/prowscope/pkg/prowjob"
)

// PacketSetupStep is the step that leases a machine for a job.
const PacketSetupStep = "baremetalds-packet-setup"

const (
	topFailing   = 10
	topTriggered = 5
	topFlaky     = 10

	assistedOrg = "openshift"
)

var assistedRepositories = map[string]struct{}{
	"assisted-service":           {},
	"assisted-installer":         {},
	"assisted-installer-agent":   {},
	"assisted-image-service":     {},
	"assisted-test-infra":        {},
	"cluster-api-provider-agent": {},
}

// Querier reads the stored events of a window [from, to).
type Querier interface {
	QueryJobs(ctx context.Context, from, to time.Time) ([]event.JobDetails, error)
	QueryStepEvents(ctx context.Context, name string, from, to time.Time) ([]event.StepEvent, error)
}

// IdentifiedJobMetrics are the metrics of one job identity.
type IdentifiedJobMetrics struct {
	JobIdentifier JobIdentifier `json:"job_identifier"`
	Metrics       JobMetrics    `json:"metrics"`
	Flakiness     *float64      `json:"flakiness"`
}

// Report is the snapshot of one window. Rates are nil for empty buckets and
// ranked lists are ascending, the highest ranked entry last.
type Report struct {
	FromDate time.Time `json:"from_date"`
	ToDate   time.Time `json:"to_date"`

	NumberOfE2EOrSubsystemPeriodicJobs           int                    `json:"number_of_e2e_or_subsystem_periodic_jobs"`
	NumberOfSuccessfulE2EOrSubsystemPeriodicJobs int                    `json:"number_of_successful_e2e_or_subsystem_periodic_jobs"`
	NumberOfFailingE2EOrSubsystemPeriodicJobs    int                    `json:"number_of_failing_e2e_or_subsystem_periodic_jobs"`
	SuccessRateForE2EOrSubsystemPeriodicJobs     *float64               `json:"success_rate_for_e2e_or_subsystem_periodic_jobs"`
	Top10FailingE2EOrSubsystemPeriodicJobs       []IdentifiedJobMetrics `json:"top_10_failing_e2e_or_subsystem_periodic_jobs"`

	NumberOfE2EOrSubsystemPresubmitJobs           int                    `json:"number_of_e2e_or_subsystem_presubmit_jobs"`
	NumberOfSuccessfulE2EOrSubsystemPresubmitJobs int                    `json:"number_of_successful_e2e_or_subsystem_presubmit_jobs"`
	NumberOfFailingE2EOrSubsystemPresubmitJobs    int                    `json:"number_of_failing_e2e_or_subsystem_presubmit_jobs"`
	NumberOfRehearsalJobs                         int                    `json:"number_of_rehearsal_jobs"`
	SuccessRateForE2EOrSubsystemPresubmitJobs     *float64               `json:"success_rate_for_e2e_or_subsystem_presubmit_jobs"`
	Top10FailingE2EOrSubsystemPresubmitJobs       []IdentifiedJobMetrics `json:"top_10_failing_e2e_or_subsystem_presubmit_jobs"`
	Top5MostTriggeredE2EOrSubsystemJobs           []IdentifiedJobMetrics `json:"top_5_most_triggered_e2e_or_subsystem_jobs"`

	NumberOfPostsubmitJobs           int                    `json:"number_of_postsubmit_jobs"`
	NumberOfSuccessfulPostsubmitJobs int                    `json:"number_of_successful_postsubmit_jobs"`
	NumberOfFailingPostsubmitJobs    int                    `json:"number_of_failing_postsubmit_jobs"`
	SuccessRateForPostsubmitJobs     *float64               `json:"success_rate_for_postsubmit_jobs"`
	Top10FailingPostsubmitJobs       []IdentifiedJobMetrics `json:"top_10_failing_postsubmit_jobs"`

	FlakyPeriodicJobs []IdentifiedJobMetrics `json:"flaky_jobs"`

	NumberOfSuccessfulMachineLeases   int `json:"number_of_successful_machine_leases"`
	NumberOfUnsuccessfulMachineLeases int `json:"number_of_unsuccessful_machine_leases"`
	TotalNumberOfMachineLeased        int `json:"total_number_of_machine_leased"`
}

// MarshalJSON keeps empty ranked lists as [] rather than null.
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	p := plain(r)
	for _, list := range []*[]IdentifiedJobMetrics{
		&p.Top10FailingE2EOrSubsystemPeriodicJobs,
		&p.Top10FailingE2EOrSubsystemPresubmitJobs,
		&p.Top5MostTriggeredE2EOrSubsystemJobs,
		&p.Top10FailingPostsubmitJobs,
		&p.FlakyPeriodicJobs,
	} {
		if *list == nil {
			*list = []IdentifiedJobMetrics{}
		}
	}
	return json.Marshal(p)
}

// Reporter builds reports from stored events.
type Reporter struct {
	querier Querier
	logger  *zap.Logger
}

// NewReporter returns a Reporter reading through querier.
func NewReporter(querier Querier, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{querier: querier, logger: logger}
}

// GetReport computes the report of [from, to).
func (r *Reporter) GetReport(ctx context.Context, from, to time.Time) (*Report, error) {
	jobs, err := r.querier.QueryJobs(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	r.logger.Debug("Queried jobs", zap.Int("jobs", len(jobs)))

	leases, err := r.querier.QueryStepEvents(ctx, PacketSetupStep, from, to)
	if err != nil {
		return nil, fmt.Errorf("query machine leases: %w", err)
	}
	r.logger.Debug("Queried step events", zap.Int("steps", len(leases)))

	return Build(from, to, jobs, leases), nil
}

// Build computes a report from the jobs and packet setup step events of
// [from, to).
func Build(from, to time.Time, jobs []event.JobDetails, leases []event.StepEvent) *Report {
	var (
		rehearsals int
		periodic   []event.JobDetails
		presubmit  []event.JobDetails
		postsubmit []event.JobDetails
	)
	for _, j := range jobs {
		if IsRehearsal(j) {
			rehearsals++
		}
		if !IsAssistedRepository(j) {
			continue
		}
		switch j.Type {
		case prowjob.TypePeriodic:
			if IsE2EOrSubsystem(j) {
				periodic = append(periodic, j)
			}
		case prowjob.TypePresubmit:
			if IsE2EOrSubsystem(j) {
				presubmit = append(presubmit, j)
			}
		case prowjob.TypePostsubmit:
			postsubmit = append(postsubmit, j)
		}
	}

	rep := &Report{
		FromDate: from,
		ToDate:   to,

		NumberOfE2EOrSubsystemPeriodicJobs:           len(periodic),
		NumberOfSuccessfulE2EOrSubsystemPeriodicJobs: countState(periodic, prowjob.StateSuccess),
		NumberOfFailingE2EOrSubsystemPeriodicJobs:    countState(periodic, prowjob.StateFailure),
		SuccessRateForE2EOrSubsystemPeriodicJobs:     ComputeMetrics(periodic).SuccessRate(),
		Top10FailingE2EOrSubsystemPeriodicJobs:       TopFailing(periodic, topFailing),

		NumberOfE2EOrSubsystemPresubmitJobs:           len(presubmit),
		NumberOfSuccessfulE2EOrSubsystemPresubmitJobs: countState(presubmit, prowjob.StateSuccess),
		NumberOfFailingE2EOrSubsystemPresubmitJobs:    countState(presubmit, prowjob.StateFailure),
		NumberOfRehearsalJobs:                         rehearsals,
		SuccessRateForE2EOrSubsystemPresubmitJobs:     ComputeMetrics(presubmit).SuccessRate(),
		Top10FailingE2EOrSubsystemPresubmitJobs:       TopFailing(presubmit, topFailing),
		Top5MostTriggeredE2EOrSubsystemJobs:           TopTriggered(presubmit, topTriggered),

		NumberOfPostsubmitJobs:           len(postsubmit),
		NumberOfSuccessfulPostsubmitJobs: countState(postsubmit, prowjob.StateSuccess),
		NumberOfFailingPostsubmitJobs:    countState(postsubmit, prowjob.StateFailure),
		SuccessRateForPostsubmitJobs:     ComputeMetrics(postsubmit).SuccessRate(),
		Top10FailingPostsubmitJobs:       TopFailing(postsubmit, topFailing),

		FlakyPeriodicJobs: TopFlaky(periodic, topFlaky),

		TotalNumberOfMachineLeased: len(leases),
	}
	for _, l := range leases {
		switch l.Step.State {
		case prowjob.StateSuccess:
			rep.NumberOfSuccessfulMachineLeases++
		case prowjob.StateFailure:
			rep.NumberOfUnsuccessfulMachineLeases++
		}
	}
	return rep
}

// IsRehearsal reports whether j is a rehearsal of a configuration change in
// openshift/release.
func IsRehearsal(j event.JobDetails) bool {
	return strings.Contains(j.Name, "rehearse") &&
		j.Type == prowjob.TypePresubmit &&
		j.Refs.Repo == "release" &&
		j.Refs.Org == assistedOrg
}

// IsAssistedRepository reports whether j tests one of the assisted
// installer repositories.
func IsAssistedRepository(j event.JobDetails) bool {
	_, ok := assistedRepositories[j.Refs.Repo]
	return ok && j.Refs.Org == assistedOrg
}

// IsE2EOrSubsystem reports whether j is an end-to-end or subsystem test.
func IsE2EOrSubsystem(j event.JobDetails) bool {
	return strings.Contains(j.Name, "e2e") || strings.Contains(j.Name, "subsystem")
}

// identify groups jobs by identity and returns the metrics of each
// identity, in order of first appearance.
func identify(jobs []event.JobDetails) []IdentifiedJobMetrics {
	var (
		order  []JobIdentifier
		groups = make(map[string][]event.JobDetails)
	)
	for _, j := range jobs {
		id := NewJobIdentifier(j)
		if _, ok := groups[id.Key()]; !ok {
			order = append(order, id)
		}
		groups[id.Key()] = append(groups[id.Key()], j)
	}

	out := make([]IdentifiedJobMetrics, len(order))
	for i, id := range order {
		runs := groups[id.Key()]
		out[i] = IdentifiedJobMetrics{
			JobIdentifier: id,
			Metrics:       ComputeMetrics(runs),
			Flakiness:     Flakiness(runs),
		}
	}
	return out
}

// topN sorts ranked with greater, takes the first n and reverses them.
func topN(ranked []IdentifiedJobMetrics, n int, greater func(a, b IdentifiedJobMetrics) bool) []IdentifiedJobMetrics {
	sort.SliceStable(ranked, func(i, j int) bool { return greater(ranked[i], ranked[j]) })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	for i, j := 0, len(ranked)-1; i < j; i, j = i+1, j-1 {
		ranked[i], ranked[j] = ranked[j], ranked[i]
	}
	return ranked
}

func deref(f *float64) float64 {
	if f == nil {
		return -1
	}
	return *f
}

// TopFailing returns the n identities with the highest failure rate, then
// failure count, then name. Identities without failures are dropped after
// ranking, so the list may be shorter than n or empty.
func TopFailing(jobs []event.JobDetails, n int) []IdentifiedJobMetrics {
	top := topN(identify(jobs), n, func(a, b IdentifiedJobMetrics) bool {
		ar, br := deref(a.Metrics.FailureRate()), deref(b.Metrics.FailureRate())
		if ar != br {
			return ar > br
		}
		if a.Metrics.Failures != b.Metrics.Failures {
			return a.Metrics.Failures > b.Metrics.Failures
		}
		return a.JobIdentifier.Name > b.JobIdentifier.Name
	})

	failing := make([]IdentifiedJobMetrics, 0, len(top))
	for _, m := range top {
		if m.Metrics.Failures > 0 {
			failing = append(failing, m)
		}
	}
	return failing
}

// TopTriggered returns the n identities with the most executions, then
// name.
func TopTriggered(jobs []event.JobDetails, n int) []IdentifiedJobMetrics {
	return topN(identify(jobs), n, func(a, b IdentifiedJobMetrics) bool {
		if a.Metrics.Total() != b.Metrics.Total() {
			return a.Metrics.Total() > b.Metrics.Total()
		}
		return a.JobIdentifier.Name > b.JobIdentifier.Name
	})
}

// TopFlaky returns the n flakiest identities, then name. Identities with
// zero or undefined flakiness are dropped after ranking.
func TopFlaky(jobs []event.JobDetails, n int) []IdentifiedJobMetrics {
	top := topN(identify(jobs), n, func(a, b IdentifiedJobMetrics) bool {
		af, bf := deref(a.Flakiness), deref(b.Flakiness)
		if af != bf {
			return af > bf
		}
		return a.JobIdentifier.Name > b.JobIdentifier.Name
	})

	flaky := make([]IdentifiedJobMetrics, 0, len(top))
	for _, m := range top {
		if m.Flakiness != nil && *m.Flakiness > 0 {
			flaky = append(flaky, m)
		}
	}
	return flaky
}
