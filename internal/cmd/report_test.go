package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/prowscope/pkg/output"
)

const storedJob = `{"_index":"jobs-2024.11","_id":"a","_source":{"job":{
  "build_id":"1767",
  "name":"periodic-ci-openshift-assisted-service-master-edge-e2e-metal-assisted",
  "context":"edge-e2e-metal-assisted",
  "type":"periodic",
  "state":"failure",
  "duration":3600,
  "start_time":"2024-03-12T08:00:00Z",
  "refs":{"org":"openshift","repo":"assisted-service","base_ref":"master"}
}}}`

func TestReport_DryRun(t *testing.T) {
	isolateEnv(t)
	es := newFakeElasticsearch(t, storedJob)
	t.Setenv("PROWSCOPE_ELASTICSEARCH_URL", es.URL)

	out := filepath.Join(t.TempDir(), "report.jsonl")
	require.NoError(t, runCommand(t, "report", "--dry-run", "--now", "2024-03-14T12:00:00Z", "--output", "file:"+out))

	records := recordsOfType(readRecords(t, out), output.TypeReport)
	require.Len(t, records, 1)

	var rec struct {
		Interval string                     `json:"interval"`
		Current  map[string]json.RawMessage `json:"current"`
		Previous map[string]json.RawMessage `json:"previous"`
		Trends   map[string]json.RawMessage `json:"trends"`
	}
	require.NoError(t, json.Unmarshal(records[0].Data, &rec))

	assert.Equal(t, "week", rec.Interval)
	assert.JSONEq(t, `"2024-03-07T06:00:00Z"`, string(rec.Current["from_date"]))
	assert.JSONEq(t, `"2024-03-14T06:00:00Z"`, string(rec.Current["to_date"]))
	// The fake store serves the same job for both windows.
	assert.JSONEq(t, `1`, string(rec.Current["number_of_e2e_or_subsystem_periodic_jobs"]))
	assert.JSONEq(t, `0`, string(rec.Current["success_rate_for_e2e_or_subsystem_periodic_jobs"]))
	assert.JSONEq(t, `0`, string(rec.Trends["number_of_e2e_or_subsystem_periodic_jobs"]))
	assert.JSONEq(t, `null`, string(rec.Current["success_rate_for_postsubmit_jobs"]))
}

func TestReport_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{name: "invalid interval", args: []string{"--dry-run", "--interval", "day"}, wantCode: ExitConfigInvalid},
		{name: "missing slack", args: []string{}, wantCode: ExitConfigInvalid},
		{name: "invalid now", args: []string{"--dry-run", "--now", "yesterday"}, wantCode: ExitInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			es := newFakeElasticsearch(t, "")
			t.Setenv("PROWSCOPE_ELASTICSEARCH_URL", es.URL)

			err := runCommand(t, append([]string{"report"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, ExitCode(err))
		})
	}
}
