package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/prowscope/pkg/event"
	"github.com/3leaps/prowscope/pkg/output"
	"github.com/3leaps/prowscope/pkg/prowjob"
)

func recordTypes(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	var types []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var r output.Record
		require.NoError(t, json.Unmarshal([]byte(line), &r))
		types = append(types, r.Type)
	}
	return types
}

func TestDryRunStore_EmptyWithoutScanner(t *testing.T) {
	var buf bytes.Buffer
	store := NewDryRunStore(nil, output.NewJSONLWriter(&buf, "run-1", "scrape"))

	ids, err := store.ScanBuildIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	usages, err := store.ScanUsageIdentifiers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, usages)
}

func TestDryRunStore_WritesRecords(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	store := NewDryRunStore(nil, output.NewJSONLWriter(&buf, "run-1", "scrape"))

	require.NoError(t, store.IndexJobs(ctx, []event.JobEvent{{}, {}}))
	require.NoError(t, store.IndexSteps(ctx, []event.StepEvent{{}}))
	require.NoError(t, store.IndexUsages(ctx, []event.UsageEvent{{}}))

	assert.Equal(t, []string{output.TypeJob, output.TypeJob, output.TypeStep, output.TypeUsage}, recordTypes(t, &buf))
}

func TestDryRunStore_ScansThroughScanner(t *testing.T) {
	backing := &memoryStore{jobs: []event.JobEvent{{Job: event.JobDetails{BuildID: "1"}}}}
	var buf bytes.Buffer
	store := NewDryRunStore(backing, output.NewJSONLWriter(&buf, "run-1", "scrape"))

	h, st := newMocks()
	summary, err := New(store, h, st).Execute(context.Background(), []*prowjob.Job{
		assistedJob("1", prowjob.StateFailure),
		assistedJob("2", prowjob.StateSuccess),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Known)
	assert.Equal(t, 1, summary.Jobs)
	assert.Equal(t, []string{output.TypeJob}, recordTypes(t, &buf))
	// The backing store is never written.
	assert.Len(t, backing.jobs, 1)
}
