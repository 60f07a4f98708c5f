package cloudmeta

import (
	"context"

	"go.uber.org/zap"

	"github.com/3leaps/prowscope/internal/docschema"
	"github.com/3leaps/prowscope/pkg/artifact"
	"github.com/3leaps/prowscope/pkg/prowjob"
)

type equinixDocument struct {
	Hostname        string `json:"hostname"`
	Metro           string `json:"metro"`
	OperatingSystem struct {
		Slug string `json:"slug"`
	} `json:"operating_system"`
}


func (d *equinixDocument) metadata() *Metadata {
	return &Metadata{Region: d.Metro, Hostname: d.Hostname, OS: d.OperatingSystem.Slug}
}

// Equinix extracts Equinix Metal device metadata.
type Equinix struct {
	logger *zap.Logger
}

// NewEquinix returns the Equinix extractor.
func NewEquinix(logger *zap.Logger) *Equinix {
	return &Equinix{logger: loggerOrNop(logger)}
}

func (*Equinix) ID() string { return ProviderEquinix }

func (*Equinix) sealed() {}

func (e *Equinix) Extract(ctx context.Context, job *prowjob.Job, store *artifact.Store) (*Metadata, error) {
	return commonExtract(ctx, store, e.logger, job, ProviderEquinix, docschema.EquinixMetadata, &equinixDocument{})
}
