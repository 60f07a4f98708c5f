package eventstore

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	doc := map[string]any{
		"job": map[string]any{"build_id": "1", "refs": map[string]any{"org": "openshift"}},
	}

	v, ok := lookup(doc, "job.refs.org")
	require.True(t, ok)
	assert.Equal(t, "openshift", v)

	_, ok = lookup(doc, "job.missing")
	assert.False(t, ok)

	_, ok = lookup(doc, "job.build_id.deeper")
	assert.False(t, ok)
}

func TestStore_FindDuplicates(t *testing.T) {
	transport := &mockTransport{handle: searchHandler(
		`{"_id":"a","_source":{"job":{"build_id":"1","name":"x"}}}`,
		`{"_id":"b","_source":{"job":{"build_id":"1","name":"x"}}}`,
		`{"_id":"c","_source":{"job":{"build_id":"1","name":"y"}}}`,
		`{"_id":"d","_source":{"job":{"build_id":"1","name":"x"}}}`,
		`{"_id":"e","_source":{"job":{"name":"x"}}}`,
	)}
	store := newTestStore(t, transport)

	dups, err := store.FindDuplicates(context.Background(), "jobs-2024.11", nil)
	require.NoError(t, err)

	require.Len(t, dups, 2)
	assert.Equal(t, "b", dups[0].ID)
	assert.Equal(t, "a", dups[0].Original)
	assert.Equal(t, "d", dups[1].ID)
	assert.Equal(t, "a", dups[1].Original)
}

func TestStore_DeleteDocuments(t *testing.T) {
	transport := &mockTransport{
		handle: func(req *http.Request, _ []byte) (int, string) {
			if req.URL.Path == "/_bulk" {
				return http.StatusOK, `{"errors":false,"items":[]}`
			}
			return http.StatusOK, `{}`
		},
	}
	store := newTestStore(t, transport)

	require.NoError(t, store.DeleteDocuments(context.Background(), "jobs-2024.11", []string{"b", "d"}))

	bulk := transport.find(http.MethodPost, "/_bulk")
	require.Len(t, bulk, 1)
	lines := strings.Split(strings.TrimSpace(bulk[0].Body), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"delete":{"_index":"jobs-2024.11","_id":"b"}}`, lines[0])
	assert.Len(t, transport.find(http.MethodPost, "/jobs-2024.11/_refresh"), 1)
}

func TestStore_DeleteDocuments_Empty(t *testing.T) {
	transport := &mockTransport{}
	store := newTestStore(t, transport)

	require.NoError(t, store.DeleteDocuments(context.Background(), "jobs-2024.11", nil))
	assert.Empty(t, transport.requests)
}
