package cloudmeta

import (
	"context"

	"go.uber.org/zap"

	"github.com/3leaps/prowscope/internal/docschema"
	"github.com/3leaps/prowscope/pkg/artifact"
	"github.com/3leaps/prowscope/pkg/prowjob"
)

type ibmClassicDocument struct {
	Datacenter string `json:"datacenter"`
	Hardware   struct {
		FullyQualifiedDomainName string `json:"fullyQualifiedDomainName"`
	} `json:"hardware"`
	OperatingSystem struct {
		SoftwareLicense struct {
			SoftwareDescription struct {
				LongDescription string `json:"longDescription"`
			} `json:"softwareDescription"`
		} `json:"softwareLicense"`
	} `json:"operatingSystem"`
}


func (d *ibmClassicDocument) metadata() *Metadata {
	return &Metadata{
		Region:   d.Datacenter,
		Hostname: d.Hardware.FullyQualifiedDomainName,
		OS:       d.OperatingSystem.SoftwareLicense.SoftwareDescription.LongDescription,
	}
}

// IBMClassic extracts IBM Cloud classic bare-metal metadata.
type IBMClassic struct {
	logger *zap.Logger
}

// NewIBMClassic returns the IBM Cloud classic extractor.
func NewIBMClassic(logger *zap.Logger) *IBMClassic {
	return &IBMClassic{logger: loggerOrNop(logger)}
}

func (*IBMClassic) ID() string { return ProviderIBMClassic }

func (*IBMClassic) sealed() {}

func (i *IBMClassic) Extract(ctx context.Context, job *prowjob.Job, store *artifact.Store) (*Metadata, error) {
	return commonExtract(ctx, store, i.logger, job, ProviderIBMClassic, docschema.IBMClassicMetadata, &ibmClassicDocument{})
}
