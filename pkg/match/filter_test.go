package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/3leaps/prowscope/pkg/prowjob"
)

func TestJobFilter_Evaluate(t *testing.T) {
	const assisted = "pull-ci-openshift-assisted-service-master-edge-subsystem-kubeapi-aws"

	tests := []struct {
		name        string
		job         string
		state       string
		hidden      bool
		description string
		want        Reason
	}{
		{"success", assisted, prowjob.StateSuccess, false, "", ReasonAccepted},
		{"failure", assisted, prowjob.StateFailure, false, "", ReasonAccepted},
		{"pending", assisted, "pending", false, "", ReasonState},
		{"aborted", assisted, "aborted", false, "", ReasonState},
		{"hidden", assisted, prowjob.StateSuccess, true, "", ReasonHidden},
		{"overridden", assisted, prowjob.StateSuccess, false, "Overridden by Batman", ReasonOverridden},
		{"fast forward", "periodic-openshift-release-fast-forward-assisted-service", prowjob.StateSuccess, false, "", ReasonName},
		{"not assisted", "pull-ci-openshift-origin-master-e2e-aws", prowjob.StateSuccess, false, "", ReasonName},
	}

	f := NewJobFilter(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &prowjob.Job{
				Spec:   prowjob.Spec{Job: tt.job, Hidden: tt.hidden},
				Status: prowjob.Status{State: tt.state, Description: tt.description},
			}
			assert.Equal(t, tt.want, f.Evaluate(j))
			assert.Equal(t, tt.want == ReasonAccepted, f.Match(j))
		})
	}
}
