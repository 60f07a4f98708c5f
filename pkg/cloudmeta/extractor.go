// Package cloudmeta extracts infrastructure metadata (region, hostname, os)
// for the machine a CI job ran on, from the provider-specific documents the
// job's gather step uploads.
//
// The set of providers is closed: Extractor is sealed and implemented only
// by the variants in this package. Callers resolve a variant by provider id
// through a Registry.
package cloudmeta

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/3leaps/prowscope/internal/docschema"
	"github.com/3leaps/prowscope/pkg/artifact"
	"github.com/3leaps/prowscope/pkg/prowjob"
)

// Provider identifiers as written by the CI resource allocator.
const (
	ProviderAWS        = "aws"
	ProviderEquinix    = "equinix"
	ProviderIBMClassic = "ibm-classic"

	// providerIBMCloudAlias is the id older resource descriptors use for
	// ibm-classic machines.
	providerIBMCloudAlias = "ibmcloud"
)

// Metadata is the provider-agnostic description of a CI machine.
type Metadata struct {
	Region   string `json:"region"`
	Hostname string `json:"hostname"`
	OS       string `json:"os"`
}

// Extractor locates and decodes the metadata document of one provider.
//
// Extract returns (nil, nil) when the document is absent, empty or
// undecodable. Errors are reserved for storage failures other than absence.
type Extractor interface {
	// ID returns the provider id the extractor serves.
	ID() string

	// Extract returns the metadata of the machine job ran on.
	Extract(ctx context.Context, job *prowjob.Job, store *artifact.Store) (*Metadata, error)

	sealed()
}

// NormalizeProviderID rewrites legacy provider aliases to their canonical id.
func NormalizeProviderID(id string) string {
	if id == providerIBMCloudAlias {
		return ProviderIBMClassic
	}
	return id
}

// metadataFile returns the provider document name, e.g. aws-metadata.json.
func metadataFile(providerID string) string {
	return providerID + "-metadata.json"
}

// document is a provider metadata payload.
type document interface {
	metadata() *Metadata
}

type fetchStatus int

const (
	fetchAbsent fetchStatus = iota
	fetchInvalid
	fetchFound
)

// fetchDocument downloads key into doc after checking it against schema.
// Absence is logged at debug level, validation and decode failures at
// warning level; neither is returned as an error.
func fetchDocument(ctx context.Context, store *artifact.Store, logger *zap.Logger, job *prowjob.Job, providerID, key string, schema *docschema.Validator, doc document) (fetchStatus, error) {
	err := store.GetJSON(ctx, key, schema, doc)

	switch {
	case err == nil:
		logger.Debug("Found provider metadata",
			zap.String("provider", providerID),
			zap.String("path", key))
		return fetchFound, nil
	case artifact.IsAbsent(err):
		logger.Debug("Provider metadata is missing",
			zap.String("provider", providerID),
			zap.String("path", key),
			zap.Error(err))
		return fetchAbsent, nil
	case artifact.IsDecodeError(err):
		logger.Warn("Failed to decode provider metadata",
			zap.String("provider", providerID),
			zap.String("job", job.Name()),
			zap.String("path", key),
			zap.Error(err))
		return fetchInvalid, nil
	default:
		return fetchAbsent, fmt.Errorf("fetch %s metadata %s: %w", providerID, key, err)
	}
}

// commonExtract implements the shared lookup at
// {base}/artifacts/{context}/ofcir-gather/artifacts/{provider}-metadata.json.
func commonExtract(ctx context.Context, store *artifact.Store, logger *zap.Logger, job *prowjob.Job, providerID string, schema *docschema.Validator, doc document) (*Metadata, error) {
	base, err := artifact.BasePathFromURL(job.Status.URL)
	if err != nil {
		return nil, fmt.Errorf("%s metadata: %w", providerID, err)
	}

	key := artifact.GatherPath(base, job.Context, metadataFile(providerID))
	status, err := fetchDocument(ctx, store, logger, job, providerID, key, schema, doc)
	if err != nil || status != fetchFound {
		return nil, err
	}
	return doc.metadata(), nil
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
