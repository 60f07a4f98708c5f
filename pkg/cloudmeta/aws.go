package cloudmeta

import (
	"context"

	"go.uber.org/zap"

	"github.com/3leaps/prowscope/internal/docschema"
	"github.com/3leaps/prowscope/pkg/artifact"
	"github.com/3leaps/prowscope/pkg/prowjob"
)

type awsDocument struct {
	ImageID    string `json:"imageId"`
	InstanceID string `json:"instanceId"`
	Region     string `json:"region"`
}


func (d *awsDocument) metadata() *Metadata {
	return &Metadata{Region: d.Region, Hostname: d.InstanceID, OS: d.ImageID}
}

// AWS extracts EC2 instance metadata. The instance id stands in for the
// hostname and the AMI id for the os.
type AWS struct {
	logger *zap.Logger
}

// NewAWS returns the AWS extractor.
func NewAWS(logger *zap.Logger) *AWS {
	return &AWS{logger: loggerOrNop(logger)}
}

func (*AWS) ID() string { return ProviderAWS }

func (*AWS) sealed() {}

func (a *AWS) Extract(ctx context.Context, job *prowjob.Job, store *artifact.Store) (*Metadata, error) {
	return commonExtract(ctx, store, a.logger, job, ProviderAWS, docschema.AWSMetadata, &awsDocument{})
}
