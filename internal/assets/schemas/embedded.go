// Package schemasassets provides the embedded Elasticsearch index
// definitions and the JSON schemas of the documents prowscope reads.
//
// Definitions are embedded at compile time so index creation and document
// validation work regardless of the working directory or installation location.
package schemasassets

import _ "embed"

// JobsIndex is the settings and mappings of the job event indices.
//
//go:embed jobs-index.json
var JobsIndex []byte

// StepsIndex is the settings and mappings of the step event indices.
//
//go:embed steps-index.json
var StepsIndex []byte

// UsagesIndex is the settings and mappings of the machine usage indices.
//
//go:embed usages-index.json
var UsagesIndex []byte

// JobListSchema is the JSON schema of the Prow job feed payload.
//
//go:embed job-list.schema.json
var JobListSchema []byte

// ResourceDescriptorSchema is the JSON schema of the cir.json document the
// resource allocator gather step uploads.
//
//go:embed cir.schema.json
var ResourceDescriptorSchema []byte

// AWSMetadataSchema is the JSON schema of aws-metadata.json.
//
//go:embed aws-metadata.schema.json
var AWSMetadataSchema []byte

// EquinixMetadataSchema is the JSON schema of equinix-metadata.json.
//
//go:embed equinix-metadata.schema.json
var EquinixMetadataSchema []byte

// EquinixLegacyMetadataSchema is the JSON schema of the equinix-metadata.json
// written by the gather steps that predate ofcir-gather.
//
//go:embed equinix-legacy-metadata.schema.json
var EquinixLegacyMetadataSchema []byte

// IBMClassicMetadataSchema is the JSON schema of ibm-classic-metadata.json.
//
//go:embed ibm-classic-metadata.schema.json
var IBMClassicMetadataSchema []byte
