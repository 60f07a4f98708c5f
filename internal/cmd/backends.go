package cmd

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/prowscope/internal/config"
	"github.com/3leaps/prowscope/pkg/artifact"
	"github.com/3leaps/prowscope/pkg/eventstore"
	"github.com/3leaps/prowscope/pkg/provider"
	"github.com/3leaps/prowscope/pkg/provider/file"
	"github.com/3leaps/prowscope/pkg/provider/s3"
)

// newEventStore connects to Elasticsearch. The usage index is only wired
// when usage ingestion is enabled.
func newEventStore(cfg *config.Config, logger *zap.Logger) (*eventstore.Store, error) {
	client, err := eventstore.NewClient(eventstore.ClientConfig{
		URL:                cfg.Elasticsearch.URL,
		Username:           cfg.Elasticsearch.Username,
		Password:           cfg.Elasticsearch.Password,
		InsecureSkipVerify: cfg.Elasticsearch.InsecureSkipVerify,
		MaxRetries:         cfg.Elasticsearch.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	indices := eventstore.Indices{
		Jobs:  cfg.Elasticsearch.JobIndex,
		Steps: cfg.Elasticsearch.StepIndex,
	}
	if cfg.Equinix.Enabled() {
		indices.Usages = cfg.Elasticsearch.UsageIndex
	}
	return eventstore.New(client, indices, eventstore.WithLogger(logger)), nil
}

// newArtifactProvider opens the artifact bucket, or a local mirror of it
// when storage.local_dir is set.
func newArtifactProvider(ctx context.Context, cfg config.StorageConfig) (provider.Provider, error) {
	if cfg.LocalDir != "" {
		return file.New(file.Config{BaseDir: cfg.LocalDir})
	}
	return s3.New(ctx, s3.Config{
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		Endpoint:  cfg.Endpoint,
		Profile:   cfg.Profile,
		Anonymous: cfg.Anonymous,
		// Interop endpoints serve buckets by path.
		ForcePathStyle: cfg.Endpoint != "",
	})
}

// newArtifactStore wraps p with request pacing. A non-positive rate limit
// disables pacing.
func newArtifactStore(p provider.Provider, cfg config.StorageConfig, logger *zap.Logger) *artifact.Store {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return artifact.NewStore(p, artifact.WithLimiter(limiter), artifact.WithLogger(logger))
}
