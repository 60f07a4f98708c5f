// Package s3 implements the provider interface for AWS S3 and S3-compatible
// storage, including the GCS XML interoperability endpoint that serves the
// public CI artifact buckets.
package s3

// Config configures an S3 provider.
//
// Authentication priority:
//  1. Anonymous (unsigned requests), for public artifact buckets
//  2. Explicit AccessKeyID/SecretAccessKey
//  3. AWS SDK v2 default chain (environment, shared files, instance roles)
//
// When Endpoint is set no default region is applied.
type Config struct {
	// Bucket is the bucket name (required).
	Bucket string

	// Region is the AWS region. Defaults to us-east-1 for AWS S3.
	Region string

	// Endpoint is a custom endpoint URL, e.g. https://storage.googleapis.com.
	Endpoint string

	// Profile is the shared config profile to use.
	Profile string

	// AccessKeyID is an explicit access key. Requires SecretAccessKey.
	AccessKeyID string

	// SecretAccessKey is an explicit secret key. Requires AccessKeyID.
	SecretAccessKey string

	// Anonymous sends unsigned requests. Mutually exclusive with explicit
	// credentials.
	Anonymous bool

	// ForcePathStyle forces path-style URLs (bucket in path, not subdomain).
	ForcePathStyle bool
}

// DefaultAWSRegion is the fallback region for AWS S3 when not specified.
const DefaultAWSRegion = "us-east-1"

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}

	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "AccessKeyID/SecretAccessKey",
			Message: "both access key ID and secret access key must be provided together",
		}
	}

	if c.Anonymous && c.AccessKeyID != "" {
		return &ConfigError{
			Field:   "Anonymous",
			Message: "anonymous access cannot be combined with explicit credentials",
		}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "s3 config: " + e.Field + ": " + e.Message
}
