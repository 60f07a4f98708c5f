package prowjob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newJob(name, jobType string, labels Labels, extra ...Ref) *Job {
	return &Job{
		Metadata: Metadata{Labels: labels},
		Spec:     Spec{Job: name, Type: jobType, ExtraRefs: extra},
		Status:   Status{BuildID: "1", State: StateSuccess},
	}
}

func TestResolveContext(t *testing.T) {
	assistedLabels := Labels{RefsOrg: "openshift", RefsRepo: "assisted-service", RefsBaseRef: "master"}

	tests := []struct {
		name    string
		job     *Job
		want    string
		wantErr bool
	}{
		{
			name: "periodic",
			job:  newJob("periodic-ci-openshift-assisted-service-master-e2e-metal-assisted", TypePeriodic, assistedLabels),
			want: "e2e-metal-assisted",
		},
		{
			name: "presubmit",
			job:  newJob("pull-ci-openshift-assisted-service-master-subsystem-aws", TypePresubmit, assistedLabels),
			want: "subsystem-aws",
		},
		{
			name: "batch uses presubmit marker",
			job:  newJob("pull-ci-openshift-assisted-service-master-subsystem-aws", TypeBatch, assistedLabels),
			want: "subsystem-aws",
		},
		{
			name: "postsubmit",
			job:  newJob("branch-ci-openshift-assisted-service-master-images", TypePostsubmit, assistedLabels),
			want: "images",
		},
		{
			name: "variant",
			job: newJob("periodic-ci-openshift-assisted-service-master-edge-e2e-metal-assisted", TypePeriodic,
				Labels{RefsOrg: "openshift", RefsRepo: "assisted-service", RefsBaseRef: "master", Variant: "edge"}),
			want: "e2e-metal-assisted",
		},
		{
			name: "rehearsal",
			job: newJob("rehearse-4121-pull-ci-openshift-assisted-test-infra-master-e2e-metal-assisted", TypePresubmit,
				Labels{RefsOrg: "openshift", RefsRepo: "release", RefsBaseRef: "master", RefsPull: "4121"},
				Ref{Org: "openshift", Repo: "assisted-test-infra", BaseRef: "master"}),
			want: "e2e-metal-assisted",
		},
		{
			name: "rehearsal with variant",
			job: newJob("rehearse-4121-periodic-ci-openshift-assisted-test-infra-master-edge-e2e", TypePeriodic,
				Labels{RefsPull: "4121", Variant: "edge"},
				Ref{Org: "openshift", Repo: "assisted-test-infra", BaseRef: "master"}),
			want: "e2e",
		},
		{
			name:    "missing labels",
			job:     newJob("periodic-ci-openshift-assisted-service-master-e2e", TypePeriodic, Labels{RefsOrg: "openshift"}),
			want:    "periodic-ci-openshift-assisted-service-master-e2e",
			wantErr: true,
		},
		{
			name: "rehearsal without extra refs",
			job: newJob("rehearse-4121-pull-ci-openshift-assisted-test-infra-master-e2e", TypePresubmit,
				Labels{RefsPull: "4121"}),
			want:    "rehearse-4121-pull-ci-openshift-assisted-test-infra-master-e2e",
			wantErr: true,
		},
		{
			name: "rehearsal with two extra refs",
			job: newJob("rehearse-4121-pull-ci-openshift-assisted-test-infra-master-e2e", TypePresubmit,
				Labels{RefsPull: "4121"},
				Ref{Org: "openshift", Repo: "a", BaseRef: "master"},
				Ref{Org: "openshift", Repo: "b", BaseRef: "master"}),
			want:    "rehearse-4121-pull-ci-openshift-assisted-test-infra-master-e2e",
			wantErr: true,
		},
		{
			name: "rehearsal without pull label",
			job: newJob("rehearse-4121-pull-ci-openshift-assisted-test-infra-master-e2e", TypePresubmit,
				Labels{},
				Ref{Org: "openshift", Repo: "assisted-test-infra", BaseRef: "master"}),
			want:    "rehearse-4121-pull-ci-openshift-assisted-test-infra-master-e2e",
			wantErr: true,
		},
		{
			name:    "unknown type",
			job:     newJob("weird-openshift-assisted-service-master-e2e", "weird", assistedLabels),
			want:    "weird-openshift-assisted-service-master-e2e",
			wantErr: true,
		},
		{
			name: "prefix does not match name",
			job:  newJob("custom-assisted-job", TypePeriodic, assistedLabels),
			want: "custom-assisted-job",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveContext(tt.job)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnresolvableContext)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolver_LogsFallback(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := NewResolver(zap.New(core))

	job := newJob("periodic-ci-openshift-assisted-service-master-e2e", TypePeriodic, Labels{})
	assert.Equal(t, job.Spec.Job, r.Resolve(job))

	warnings := logs.FilterLevelExact(zap.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, job.Spec.Job, warnings[0].ContextMap()["job"])
}

func TestResolver_NilLogger(t *testing.T) {
	r := NewResolver(nil)
	job := newJob("branch-ci-openshift-assisted-service-master-images", TypePostsubmit,
		Labels{RefsOrg: "openshift", RefsRepo: "assisted-service", RefsBaseRef: "master"})
	assert.Equal(t, "images", r.Resolve(job))
}
