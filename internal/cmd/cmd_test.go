package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/3leaps/prowscope/pkg/output"
)

// resetFlags restores every command flag variable to its default.
func resetFlags(t *testing.T) {
	t.Helper()
	cfgFile, envFile, logLevel, verbose = "", "", "", false
	scrapeDryRun, scrapeOutput = false, "stdout"
	reportDryRun, reportOutput, reportInterval, reportEnd = false, "stdout", "", ""
	dedupeIndex, dedupeFields, dedupeDryRun, dedupeOutput = "", nil, true, "stdout"
	doctorTimeout = 10 * time.Second
	appConfig = nil
}

// runCommand executes the root command with args.
func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	resetFlags(t)
	rootCmd.SetArgs(args)
	rootCmd.SetContext(context.Background())
	err := rootCmd.Execute()
	rootCmd.SetArgs(nil)
	return err
}

// isolateEnv clears the variables that would leak configuration into tests.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"ES_URL", "ES_USER", "ES_PASSWORD", "ES_JOB_INDEX", "ES_STEP_INDEX", "ES_USAGE_INDEX",
		"JOB_LIST_URL", "GCS_BUCKET_NAME", "SLACK_BOT_TOKEN", "SLACK_CHANNEL_ID",
		"REPORT_INTERVAL", "LOG_LEVEL", "EQUINIX_PROJECT_ID", "EQUINIX_PROJECT_TOKEN",
	} {
		t.Setenv(name, "")
	}
	t.Setenv("PROWSCOPE_LOGGING_LEVEL", "error")
}

// readRecords parses a JSONL output file.
func readRecords(t *testing.T, path string) []output.Record {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var records []output.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		var r output.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.NoError(t, scanner.Err())
	return records
}

func recordsOfType(records []output.Record, typ string) []output.Record {
	var out []output.Record
	for _, r := range records {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

// fakeElasticsearch serves the search, scroll, bulk and refresh APIs.
type fakeElasticsearch struct {
	*httptest.Server

	mu    sync.Mutex
	hits  string
	paths []string
	bulks []string
}

func newFakeElasticsearch(t *testing.T, hits string) *fakeElasticsearch {
	t.Helper()
	f := &fakeElasticsearch{hits: hits}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeElasticsearch) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	if strings.HasSuffix(r.URL.Path, "/_bulk") {
		f.bulks = append(f.bulks, string(body))
	}
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasPrefix(r.URL.Path, "/_search/scroll"):
		if r.Method == http.MethodDelete {
			_, _ = io.WriteString(w, `{"succeeded":true}`)
			return
		}
		_, _ = io.WriteString(w, `{"_scroll_id":"s1","hits":{"hits":[]}}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		_, _ = io.WriteString(w, `{"_scroll_id":"s1","hits":{"hits":[`+f.hits+`]}}`)
	case strings.HasSuffix(r.URL.Path, "/_bulk"):
		_, _ = io.WriteString(w, `{"errors":false,"items":[]}`)
	default:
		_, _ = io.WriteString(w, `{}`)
	}
}

func (f *fakeElasticsearch) bulkBodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bulks...)
}
