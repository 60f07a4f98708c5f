// Package provider defines a read-only abstraction over the object stores
// that hold CI job artifacts.
//
// A Provider is bound to a single bucket. Keys are object paths relative to
// that bucket, without a leading slash.
package provider

import (
	"context"
	"io"
	"time"
)

// Provider reads objects from a bucket.
//
// Implementations must be safe for concurrent use and must report missing
// objects with an error wrapping ErrNotFound.
type Provider interface {
	// Head returns metadata for a single object.
	Head(ctx context.Context, key string) (*ObjectMeta, error)

	// GetObject opens the object body as a stream. The caller closes it.
	GetObject(ctx context.Context, key string) (body io.ReadCloser, contentLength int64, err error)

	// Close releases any resources held by the provider.
	Close() error
}

// ObjectMeta contains metadata for a single object.
type ObjectMeta struct {
	// Key is the object key (path) in the bucket.
	Key string

	// Size is the object size in bytes.
	Size int64

	// ETag is the entity tag, when the store reports one.
	ETag string

	// LastModified is when the object was last modified.
	LastModified time.Time

	// ContentType is the MIME type of the object.
	ContentType string
}

// ProviderType identifies an object store implementation.
type ProviderType string

const (
	// ProviderS3 represents AWS S3 or an S3-compatible API (including the
	// GCS XML interoperability endpoint).
	ProviderS3 ProviderType = "s3"

	// ProviderFile represents a local directory mirror of a bucket.
	ProviderFile ProviderType = "file"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}
