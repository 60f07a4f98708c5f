package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		bucket   string
		basePath string
		wantErr  bool
	}{
		{
			name:     "presubmit",
			url:      "https://prow.ci.openshift.org/view/gs/origin-ci-test/pr-logs/pull/openshift_assisted-service/4121/pull-ci-openshift-assisted-service-master-e2e/1609142345935650816",
			bucket:   "origin-ci-test",
			basePath: "pr-logs/pull/openshift_assisted-service/4121/pull-ci-openshift-assisted-service-master-e2e/1609142345935650816",
		},
		{
			name:     "periodic with trailing slash",
			url:      "https://prow.ci.openshift.org/view/gs/test-platform-results/logs/periodic-ci-openshift-assisted-test-infra-master-e2e/42/",
			bucket:   "test-platform-results",
			basePath: "logs/periodic-ci-openshift-assisted-test-infra-master-e2e/42",
		},
		{name: "github url", url: "https://github.com/openshift/assisted-service/pull/1", wantErr: true},
		{name: "bucket only", url: "https://prow.ci.openshift.org/view/gs/origin-ci-test", wantErr: true},
		{name: "unparseable", url: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseJobURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, loc.Bucket)
			assert.Equal(t, tt.basePath, loc.BasePath)

			base, err := BasePathFromURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.basePath, base)
		})
	}
}

func TestGatherPath(t *testing.T) {
	assert.Equal(t,
		"logs/job/1/artifacts/e2e-metal/ofcir-gather/artifacts/cir.json",
		GatherPath("logs/job/1", "e2e-metal", "cir.json"))
	assert.Equal(t,
		"logs/job/1/artifacts/junit_operator.xml",
		Path("logs/job/1", "junit_operator.xml"))
}
