package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/prowscope/pkg/event"
	"github.com/3leaps/prowscope/pkg/prowjob"
)

var (
	windowFrom = time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	windowTo   = time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)
)

type staticQuerier struct {
	jobs     []event.JobDetails
	steps    []event.StepEvent
	stepName string
	err      error
}

func (q *staticQuerier) QueryJobs(context.Context, time.Time, time.Time) ([]event.JobDetails, error) {
	return q.jobs, q.err
}

func (q *staticQuerier) QueryStepEvents(_ context.Context, name string, _, _ time.Time) ([]event.StepEvent, error) {
	q.stepName = name
	return q.steps, nil
}

func job(name, jobType, state string, startOffset time.Duration) event.JobDetails {
	start := windowFrom.Add(startOffset)
	return event.JobDetails{
		BuildID:   name + start.String(),
		Name:      name,
		Type:      jobType,
		State:     state,
		StartTime: &start,
		Context:   "e2e-metal-assisted",
		Refs:      event.Refs{Org: "openshift", Repo: "assisted-service", BaseRef: "master"},
	}
}

func TestReporter_GetReport_PeriodicScenario(t *testing.T) {
	const name = "periodic-ci-openshift-assisted-service-master-e2e-metal-assisted"
	q := &staticQuerier{jobs: []event.JobDetails{
		job(name, prowjob.TypePeriodic, prowjob.StateSuccess, 1*time.Hour),
		job(name, prowjob.TypePeriodic, prowjob.StateSuccess, 2*time.Hour),
		job(name, prowjob.TypePeriodic, prowjob.StateFailure, 3*time.Hour),
		job(name, prowjob.TypePeriodic, prowjob.StateSuccess, 4*time.Hour),
		job(name, prowjob.TypePeriodic, prowjob.StateSuccess, 5*time.Hour),
	}}

	rep, err := NewReporter(q, nil).GetReport(context.Background(), windowFrom, windowTo)
	require.NoError(t, err)

	assert.Equal(t, 5, rep.NumberOfE2EOrSubsystemPeriodicJobs)
	assert.Equal(t, 4, rep.NumberOfSuccessfulE2EOrSubsystemPeriodicJobs)
	assert.Equal(t, 1, rep.NumberOfFailingE2EOrSubsystemPeriodicJobs)
	require.NotNil(t, rep.SuccessRateForE2EOrSubsystemPeriodicJobs)
	assert.InDelta(t, 80.0, *rep.SuccessRateForE2EOrSubsystemPeriodicJobs, 1e-9)

	require.Len(t, rep.Top10FailingE2EOrSubsystemPeriodicJobs, 1)
	top := rep.Top10FailingE2EOrSubsystemPeriodicJobs[0]
	assert.Equal(t, name, top.JobIdentifier.Name)
	assert.Equal(t, 1, top.Metrics.Failures)

	assert.Nil(t, rep.SuccessRateForE2EOrSubsystemPresubmitJobs)
	assert.Nil(t, rep.SuccessRateForPostsubmitJobs)
	assert.Empty(t, rep.Top10FailingPostsubmitJobs)
	assert.Equal(t, PacketSetupStep, q.stepName)
}

func TestReporter_GetReport_QueryError(t *testing.T) {
	q := &staticQuerier{err: errors.New("unreachable")}

	_, err := NewReporter(q, nil).GetReport(context.Background(), windowFrom, windowTo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query jobs")
}

func TestBuild_Buckets(t *testing.T) {
	postsubmit := job("branch-ci-openshift-assisted-service-master-images", prowjob.TypePostsubmit, prowjob.StateFailure, 0)
	batch := job("pull-ci-openshift-assisted-service-master-e2e-metal-assisted", prowjob.TypeBatch, prowjob.StateSuccess, 0)
	lint := job("pull-ci-openshift-assisted-service-master-lint", prowjob.TypePresubmit, prowjob.StateSuccess, 0)
	foreign := job("pull-ci-openshift-origin-master-e2e-aws", prowjob.TypePresubmit, prowjob.StateSuccess, 0)
	foreign.Refs.Repo = "origin"
	presubmit := job("pull-ci-openshift-assisted-service-master-subsystem-aws", prowjob.TypePresubmit, prowjob.StateSuccess, 0)

	rep := Build(windowFrom, windowTo, []event.JobDetails{postsubmit, batch, lint, foreign, presubmit}, nil)

	assert.Equal(t, 1, rep.NumberOfE2EOrSubsystemPresubmitJobs)
	assert.Equal(t, 0, rep.NumberOfE2EOrSubsystemPeriodicJobs)
	assert.Equal(t, 1, rep.NumberOfPostsubmitJobs)
	assert.Equal(t, 1, rep.NumberOfFailingPostsubmitJobs)
	require.NotNil(t, rep.SuccessRateForPostsubmitJobs)
	assert.InDelta(t, 0.0, *rep.SuccessRateForPostsubmitJobs, 1e-9)
	require.Len(t, rep.Top5MostTriggeredE2EOrSubsystemJobs, 1)
}

func TestBuild_MachineLeases(t *testing.T) {
	leases := []event.StepEvent{
		{Step: event.StepDetails{Name: PacketSetupStep, State: prowjob.StateSuccess}},
		{Step: event.StepDetails{Name: PacketSetupStep, State: prowjob.StateFailure}},
		{Step: event.StepDetails{Name: PacketSetupStep, State: prowjob.StateSuccess}},
	}

	rep := Build(windowFrom, windowTo, nil, leases)

	assert.Equal(t, 2, rep.NumberOfSuccessfulMachineLeases)
	assert.Equal(t, 1, rep.NumberOfUnsuccessfulMachineLeases)
	assert.Equal(t, 3, rep.TotalNumberOfMachineLeased)
}

func TestIsRehearsal(t *testing.T) {
	base := event.JobDetails{
		Name: "rehearse-1234-pull-ci-openshift-assisted-service-master-e2e",
		Type: prowjob.TypePresubmit,
		Refs: event.Refs{Org: "openshift", Repo: "release"},
	}

	tests := []struct {
		name   string
		mutate func(*event.JobDetails)
		want   bool
	}{
		{"rehearsal", func(*event.JobDetails) {}, true},
		{"no rehearse marker", func(j *event.JobDetails) { j.Name = "pull-ci-openshift-release-master-check" }, false},
		{"periodic", func(j *event.JobDetails) { j.Type = prowjob.TypePeriodic }, false},
		{"other repo", func(j *event.JobDetails) { j.Refs.Repo = "assisted-service" }, false},
		{"other org", func(j *event.JobDetails) { j.Refs.Org = "openshift-priv" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := base
			tt.mutate(&j)
			assert.Equal(t, tt.want, IsRehearsal(j))
		})
	}
}

func TestBuild_RehearsalsCountedOverAllJobs(t *testing.T) {
	rehearsal := event.JobDetails{
		Name: "rehearse-1234-pull-ci-openshift-assisted-service-master-e2e",
		Type: prowjob.TypePresubmit,
		Refs: event.Refs{Org: "openshift", Repo: "release"},
	}

	rep := Build(windowFrom, windowTo, []event.JobDetails{rehearsal, rehearsal}, nil)

	assert.Equal(t, 2, rep.NumberOfRehearsalJobs)
	assert.Equal(t, 0, rep.NumberOfE2EOrSubsystemPresubmitJobs)
}

func TestTopFailing(t *testing.T) {
	var jobs []event.JobDetails
	add := func(name string, successes, failures int) {
		for i := 0; i < successes; i++ {
			jobs = append(jobs, job(name, prowjob.TypePresubmit, prowjob.StateSuccess, time.Duration(i)*time.Minute))
		}
		for i := 0; i < failures; i++ {
			jobs = append(jobs, job(name, prowjob.TypePresubmit, prowjob.StateFailure, time.Duration(successes+i)*time.Minute))
		}
	}
	add("a", 1, 1) // 50%
	add("b", 0, 2) // 100%, 2 failures
	add("c", 0, 1) // 100%, 1 failure
	add("d", 3, 0) // never fails
	add("e", 2, 2) // 50%, more failures than a

	t.Run("ascending with worst last", func(t *testing.T) {
		top := TopFailing(jobs, 10)
		names := make([]string, len(top))
		for i, m := range top {
			names[i] = m.JobIdentifier.Name
		}
		assert.Equal(t, []string{"a", "e", "c", "b"}, names)
	})

	t.Run("cut before dropping non failing", func(t *testing.T) {
		top := TopFailing(jobs, 2)
		require.Len(t, top, 2)
		assert.Equal(t, "c", top[0].JobIdentifier.Name)
		assert.Equal(t, "b", top[1].JobIdentifier.Name)
	})

	t.Run("no failures", func(t *testing.T) {
		var passing []event.JobDetails
		for i := 0; i < 3; i++ {
			passing = append(passing, job("d", prowjob.TypePresubmit, prowjob.StateSuccess, 0))
		}
		assert.Empty(t, TopFailing(passing, 10))
	})
}

func TestTopTriggered(t *testing.T) {
	var jobs []event.JobDetails
	for name, n := range map[string]int{"a": 3, "b": 1, "c": 3, "d": 2} {
		for i := 0; i < n; i++ {
			jobs = append(jobs, job(name, prowjob.TypePresubmit, prowjob.StateSuccess, time.Duration(i)*time.Minute))
		}
	}

	top := TopTriggered(jobs, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "d", top[0].JobIdentifier.Name)
	assert.Equal(t, "a", top[1].JobIdentifier.Name)
	assert.Equal(t, "c", top[2].JobIdentifier.Name)
	assert.Equal(t, 3, top[2].Metrics.Total())
}

func TestIdentify_GroupsByName(t *testing.T) {
	first := job("a", prowjob.TypePeriodic, prowjob.StateSuccess, 0)
	drifted := job("a", prowjob.TypePeriodic, prowjob.StateFailure, time.Hour)
	drifted.Variant = "nightly"
	drifted.Context = "other"

	ids := identify([]event.JobDetails{first, drifted})

	require.Len(t, ids, 1)
	assert.Equal(t, 2, ids[0].Metrics.Total())
	assert.Equal(t, "e2e-metal-assisted", ids[0].JobIdentifier.Context)
	assert.True(t, ids[0].JobIdentifier.Equal(NewJobIdentifier(drifted)))
}

func TestReport_MarshalJSON(t *testing.T) {
	rep := Build(windowFrom, windowTo, nil, nil)

	data, err := json.Marshal(rep)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["success_rate_for_postsubmit_jobs"])
	assert.Contains(t, decoded, "success_rate_for_postsubmit_jobs")
	assert.Equal(t, []any{}, decoded["top_10_failing_postsubmit_jobs"])
	assert.Equal(t, float64(0), decoded["total_number_of_machine_leased"])
}
