package report

import (
	"sort"

	"github.com/3leaps/prowscope/pkg/event"
	"github.com/3leaps/prowscope/pkg/prowjob"
)

// JobMetrics aggregates the executions of a job population.
type JobMetrics struct {
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
}

// Total returns the number of executions.
func (m JobMetrics) Total() int {
	return m.Successes + m.Failures
}

// FailureRate returns the failure percentage, or nil without executions.
func (m JobMetrics) FailureRate() *float64 {
	if m.Total() == 0 {
		return nil
	}
	rate := float64(m.Failures) * 100 / float64(m.Total())
	return &rate
}

// SuccessRate returns the success percentage, or nil without executions.
func (m JobMetrics) SuccessRate() *float64 {
	failure := m.FailureRate()
	if failure == nil {
		return nil
	}
	rate := 100 - *failure
	return &rate
}

// ComputeMetrics counts jobs in state success as successes and every other
// job as a failure.
func ComputeMetrics(jobs []event.JobDetails) JobMetrics {
	successes := countState(jobs, prowjob.StateSuccess)
	return JobMetrics{Successes: successes, Failures: len(jobs) - successes}
}

func countState(jobs []event.JobDetails, state string) int {
	n := 0
	for _, j := range jobs {
		if j.State == state {
			n++
		}
	}
	return n
}

// Flakiness returns the recency-weighted frequency of state changes between
// consecutive executions, in [0, 1]. Executions without a start time or state
// are ignored. It returns nil without executions and 0 for a single one.
func Flakiness(jobs []event.JobDetails) *float64 {
	runs := make([]event.JobDetails, 0, len(jobs))
	for _, j := range jobs {
		if j.StartTime != nil && j.State != "" {
			runs = append(runs, j)
		}
	}
	sort.SliceStable(runs, func(a, b int) bool {
		return runs[a].StartTime.Before(*runs[b].StartTime)
	})

	switch len(runs) {
	case 0:
		return nil
	case 1:
		zero := 0.0
		return &zero
	}

	diffs := make([]float64, len(runs)-1)
	for i := 1; i < len(runs); i++ {
		if (runs[i].State == prowjob.StateSuccess) != (runs[i-1].State == prowjob.StateSuccess) {
			diffs[i-1] = 1
		}
	}

	weights := linspace(0.1, 1, len(diffs))
	var sum, weighted float64
	for i, w := range weights {
		sum += w
		weighted += w * diffs[i]
	}
	flakiness := weighted / sum
	return &flakiness
}

// linspace returns n evenly spaced values from start to stop inclusive.
func linspace(start, stop float64, n int) []float64 {
	if n == 1 {
		return []float64{start}
	}
	values := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range values {
		values[i] = start + float64(i)*step
	}
	return values
}
