package cloudmeta

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/3leaps/prowscope/internal/docschema"
	"github.com/3leaps/prowscope/pkg/artifact"
	"github.com/3leaps/prowscope/pkg/prowjob"
)

const legacyEquinixFile = "equinix-metadata.json"

// LegacyProfiles maps a cloud cluster profile to the ordered gather steps
// that may hold equinix-metadata.json.
type LegacyProfiles map[string][]string

// ParseLegacyProfiles decodes a YAML profile table of the form
//
//	profiles:
//	  packet-assisted: [step-a, step-b]
func ParseLegacyProfiles(data []byte) (LegacyProfiles, error) {
	var doc struct {
		Profiles LegacyProfiles `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse legacy equinix profiles: %w", err)
	}
	return doc.Profiles, nil
}

type legacyEquinixDocument struct {
	Facility        string `json:"facility"`
	Hostname        string `json:"hostname"`
	ID              string `json:"id"`
	Metro           string `json:"metro"`
	Plan            string `json:"plan"`
	OperatingSystem struct {
		Slug     string `json:"slug"`
		ImageTag string `json:"imageTag"`
	} `json:"operatingSystem"`
}


func (d *legacyEquinixDocument) metadata() *Metadata {
	return &Metadata{Region: d.Metro, Hostname: d.Hostname, OS: d.OperatingSystem.Slug}
}

// EquinixLegacy serves the equinix provider for workflows that predate the
// ofcir-gather step. It tries the gather steps listed for the job's cloud
// cluster profile in order and stops at the first document that exists.
// When none exists it falls through to the Equinix lookup.
type EquinixLegacy struct {
	profiles LegacyProfiles
	common   *Equinix
	logger   *zap.Logger
}

// NewEquinixLegacy returns the legacy Equinix extractor.
func NewEquinixLegacy(profiles LegacyProfiles, logger *zap.Logger) *EquinixLegacy {
	logger = loggerOrNop(logger)
	return &EquinixLegacy{
		profiles: profiles,
		common:   NewEquinix(logger),
		logger:   logger,
	}
}

func (*EquinixLegacy) ID() string { return ProviderEquinix }

func (*EquinixLegacy) sealed() {}

// CandidatePaths returns the legacy document paths tried for job.
func (e *EquinixLegacy) CandidatePaths(job *prowjob.Job) ([]string, error) {
	steps := e.profiles[job.Metadata.Labels.CloudClusterProfile]
	if len(steps) == 0 {
		return nil, nil
	}
	base, err := artifact.BasePathFromURL(job.Status.URL)
	if err != nil {
		return nil, fmt.Errorf("equinix legacy metadata: %w", err)
	}
	paths := make([]string, 0, len(steps))
	for _, step := range steps {
		paths = append(paths, artifact.Path(base, job.Context, step, "artifacts", legacyEquinixFile))
	}
	return paths, nil
}

func (e *EquinixLegacy) Extract(ctx context.Context, job *prowjob.Job, store *artifact.Store) (*Metadata, error) {
	paths, err := e.CandidatePaths(job)
	if err != nil {
		return nil, err
	}

	for _, key := range paths {
		doc := &legacyEquinixDocument{}
		status, err := fetchDocument(ctx, store, e.logger, job, ProviderEquinix, key, docschema.EquinixLegacyMetadata, doc)
		if err != nil {
			return nil, err
		}
		switch status {
		case fetchFound:
			return doc.metadata(), nil
		case fetchInvalid:
			return nil, nil
		}
	}

	return e.common.Extract(ctx, job, store)
}
