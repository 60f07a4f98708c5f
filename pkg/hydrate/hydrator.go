// Package hydrate attaches CI machine metadata to jobs that ran on
// allocated bare-metal infrastructure.
package hydrate

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/3leaps/prowscope/internal/docschema"
	"github.com/3leaps/prowscope/pkg/artifact"
	"github.com/3leaps/prowscope/pkg/cloudmeta"
	"github.com/3leaps/prowscope/pkg/prowjob"
)

const (
	// eligibleProfileMarker marks cloud cluster profiles backed by the CI
	// resource allocator.
	eligibleProfileMarker = "packet"

	resourceDescriptorFile = "cir.json"
)

// Hydrator fetches the resource descriptor of each eligible job and merges
// the provider metadata into it.
type Hydrator struct {
	store    *artifact.Store
	registry *cloudmeta.Registry
	logger   *zap.Logger
}

// New returns a Hydrator reading artifacts from store and resolving
// providers through registry.
func New(store *artifact.Store, registry *cloudmeta.Registry, logger *zap.Logger) *Hydrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hydrator{store: store, registry: registry, logger: logger}
}

// Hydrate attaches a CIResource to every job for which a resource
// descriptor and provider metadata were found. Jobs are processed in order;
// a failure for one job leaves it unmodified and does not affect the others.
func (h *Hydrator) Hydrate(ctx context.Context, jobs []*prowjob.Job) {
	hydrated := 0
	for _, job := range jobs {
		if h.hydrateJob(ctx, job) {
			hydrated++
		}
	}
	h.logger.Info("Hydrated jobs with machine metadata",
		zap.Int("jobs", len(jobs)),
		zap.Int("hydrated", hydrated))
}

// Eligible reports whether job ran on allocator-managed infrastructure.
func Eligible(job *prowjob.Job) bool {
	return strings.Contains(job.Metadata.Labels.CloudClusterProfile, eligibleProfileMarker)
}

func (h *Hydrator) hydrateJob(ctx context.Context, job *prowjob.Job) bool {
	log := h.logger.With(zap.String("job", job.Name()), zap.String("build_id", job.BuildID()))

	if !Eligible(job) {
		log.Debug("Job does not run on allocated machines, skipping metadata")
		return false
	}

	base, err := artifact.BasePathFromURL(job.Status.URL)
	if err != nil {
		log.Warn("Cannot derive artifact path from job url", zap.Error(err))
		return false
	}

	key := artifact.GatherPath(base, job.Context, resourceDescriptorFile)
	var cir prowjob.CIResource
	if err := h.store.GetJSON(ctx, key, docschema.ResourceDescriptor, &cir); err != nil {
		switch {
		case artifact.IsAbsent(err):
			log.Debug("No resource descriptor found", zap.String("path", key))
		case artifact.IsDecodeError(err):
			log.Warn("Failed to decode resource descriptor", zap.String("path", key), zap.Error(err))
		default:
			log.Warn("Failed to fetch resource descriptor", zap.String("path", key), zap.Error(err))
		}
		return false
	}

	if cir.Provider == "" {
		log.Debug("Resource descriptor names no provider")
		return false
	}
	cir.Provider = cloudmeta.NormalizeProviderID(cir.Provider)

	extractor, ok := h.registry.Lookup(cir.Provider)
	if !ok {
		log.Debug("Provider is not supported", zap.String("provider", cir.Provider))
		return false
	}

	meta, err := extractor.Extract(ctx, job, h.store)
	if err != nil {
		log.Warn("Failed to extract provider metadata", zap.String("provider", cir.Provider), zap.Error(err))
		return false
	}
	if meta == nil {
		log.Debug("No provider metadata found", zap.String("provider", cir.Provider))
		return false
	}

	cir.Region = meta.Region
	cir.Hostname = meta.Hostname
	cir.OS = meta.OS
	job.CIResource = &cir

	log.Debug("Attached machine metadata",
		zap.String("provider", cir.Provider),
		zap.String("region", cir.Region),
		zap.String("hostname", cir.Hostname))
	return true
}
