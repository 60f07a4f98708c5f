package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/prowscope/pkg/match"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(ctx, Options{})
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "structured", cfg.Logging.Profile)

		assert.Equal(t, 60*time.Second, cfg.Feed.Timeout)

		assert.Equal(t, "https://storage.googleapis.com", cfg.Storage.Endpoint)
		assert.True(t, cfg.Storage.Anonymous)
		assert.Equal(t, 20.0, cfg.Storage.RateLimit)

		assert.Equal(t, "jobs", cfg.Elasticsearch.JobIndex)
		assert.Equal(t, "steps", cfg.Elasticsearch.StepIndex)
		assert.Equal(t, "usages", cfg.Elasticsearch.UsageIndex)

		assert.Equal(t, 3, cfg.Slack.UploadAttempts)
		assert.Equal(t, 3*time.Second, cfg.Slack.UploadDelay)

		assert.Equal(t, "week", cfg.Report.Interval)
		assert.Equal(t, match.DefaultIncludes, cfg.Match.Includes)
		assert.Equal(t, match.DefaultExcludes, cfg.Match.Excludes)
		assert.Equal(t, []string{"job.build_id", "job.name"}, cfg.Dedupe.Fields)
		assert.False(t, cfg.Equinix.Enabled())
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"report": map[string]any{
				"interval": "month",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, Options{Overrides: overrides})
		require.NoError(t, err)

		assert.Equal(t, "month", cfg.Report.Interval)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "structured", cfg.Logging.Profile)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("PROWSCOPE_FEED_URL", "https://prow.example/prowjobs.js")
		t.Setenv("PROWSCOPE_SLACK_UPLOAD_DELAY", "5s")
		t.Setenv("PROWSCOPE_MATCH_INCLUDES", "*assisted*,*agent*")

		cfg, err := Load(ctx, Options{})
		require.NoError(t, err)

		assert.Equal(t, "https://prow.example/prowjobs.js", cfg.Feed.URL)
		assert.Equal(t, 5*time.Second, cfg.Slack.UploadDelay)
		assert.Equal(t, []string{"*assisted*", "*agent*"}, cfg.Match.Includes)
	})

	t.Run("LegacyEnv", func(t *testing.T) {
		t.Setenv("ES_URL", "http://es:9200")
		t.Setenv("ES_JOB_INDEX", "jobs-legacy")
		t.Setenv("SLACK_BOT_TOKEN", "xoxb-1")
		t.Setenv("EQUINIX_PROJECT_ID", "p1")
		t.Setenv("EQUINIX_PROJECT_TOKEN", "tok")

		cfg, err := Load(ctx, Options{})
		require.NoError(t, err)

		assert.Equal(t, "http://es:9200", cfg.Elasticsearch.URL)
		assert.Equal(t, "jobs-legacy", cfg.Elasticsearch.JobIndex)
		assert.Equal(t, "xoxb-1", cfg.Slack.Token)
		assert.True(t, cfg.Equinix.Enabled())
	})

	t.Run("PrefixedEnvWinsOverLegacy", func(t *testing.T) {
		t.Setenv("ES_URL", "http://legacy:9200")
		t.Setenv("PROWSCOPE_ELASTICSEARCH_URL", "http://prefixed:9200")

		cfg, err := Load(ctx, Options{})
		require.NoError(t, err)
		assert.Equal(t, "http://prefixed:9200", cfg.Elasticsearch.URL)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		t.Setenv("PROWSCOPE_REPORT_INTERVAL", "month")

		cfg, err := Load(ctx, Options{Overrides: map[string]any{
			"report": map[string]any{"interval": "week"},
		}})
		require.NoError(t, err)
		assert.Equal(t, "week", cfg.Report.Interval)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prowscope.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
elasticsearch:
  url: http://file:9200
  step_index: steps-file
slack:
  channel: C123
`), 0o600))
		t.Setenv("PROWSCOPE_SLACK_CHANNEL", "C999")

		cfg, err := Load(ctx, Options{ConfigFile: path})
		require.NoError(t, err)

		assert.Equal(t, "http://file:9200", cfg.Elasticsearch.URL)
		assert.Equal(t, "steps-file", cfg.Elasticsearch.StepIndex)
		assert.Equal(t, "jobs", cfg.Elasticsearch.JobIndex)
		// Environment wins over the file.
		assert.Equal(t, "C999", cfg.Slack.Channel)
	})

	t.Run("MissingConfigFile", func(t *testing.T) {
		_, err := Load(ctx, Options{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
		require.Error(t, err)
	})

	t.Run("EnvFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(path, []byte("GCS_BUCKET_NAME=test-platform-results\n"), 0o600))
		t.Cleanup(func() { _ = os.Unsetenv("GCS_BUCKET_NAME") })

		cfg, err := Load(ctx, Options{EnvFile: path})
		require.NoError(t, err)
		assert.Equal(t, "test-platform-results", cfg.Storage.Bucket)
	})

	t.Run("MissingExplicitEnvFile", func(t *testing.T) {
		_, err := Load(ctx, Options{EnvFile: filepath.Join(t.TempDir(), "missing.env")})
		require.Error(t, err)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Load(cctx, Options{})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestGetConfig(t *testing.T) {
	cfg, err := Load(context.Background(), Options{Overrides: map[string]any{
		"metrics": map[string]any{"job": "prowscope-test"},
	}})
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Same(t, cfg, retrieved)
	assert.Equal(t, "prowscope-test", retrieved.Metrics.Job)
}

func TestEnvSpecs(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	specs := EnvSpecs(v)
	require.NotEmpty(t, specs)

	byPath := make(map[string][]string)
	for _, spec := range specs {
		assert.NotEmpty(t, spec.Path)
		require.NotEmpty(t, spec.Names)
		assert.Contains(t, spec.Names[0], "PROWSCOPE_", "prefixed name comes first")
		byPath[spec.Path] = spec.Names
	}

	assert.Equal(t, []string{"PROWSCOPE_ELASTICSEARCH_URL", "ES_URL"}, byPath["elasticsearch.url"])
	assert.Equal(t, []string{"PROWSCOPE_FEED_URL", "JOB_LIST_URL"}, byPath["feed.url"])
	assert.Equal(t, []string{"PROWSCOPE_STORAGE_RATE_LIMIT"}, byPath["storage.rate_limit"])
}
