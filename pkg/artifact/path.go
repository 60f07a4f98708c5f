// Package artifact locates and downloads the artifacts a Prow job uploads to
// its storage bucket.
package artifact

import (
	"fmt"
	"net/url"
	"strings"
)

// gcsViewMarker separates the viewer route from bucket/path in a job URL.
const gcsViewMarker = "/gs/"

// Location is the storage location of a job's artifacts.
type Location struct {
	Bucket   string
	BasePath string
}

// ParseJobURL extracts the bucket and artifact base path from a job URL,
// e.g. https://prow.ci.openshift.org/view/gs/origin-ci-test/logs/job/123
// yields bucket "origin-ci-test" and base path "logs/job/123".
func ParseJobURL(jobURL string) (Location, error) {
	u, err := url.Parse(jobURL)
	if err != nil {
		return Location{}, fmt.Errorf("parse job url: %w", err)
	}

	idx := strings.Index(u.Path, gcsViewMarker)
	if idx < 0 {
		return Location{}, fmt.Errorf("job url %q has no %s segment", jobURL, gcsViewMarker)
	}

	rest := strings.Trim(u.Path[idx+len(gcsViewMarker):], "/")
	bucket, basePath, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || basePath == "" {
		return Location{}, fmt.Errorf("job url %q has no artifact path", jobURL)
	}
	return Location{Bucket: bucket, BasePath: basePath}, nil
}

// BasePathFromURL returns only the artifact base path of a job URL.
func BasePathFromURL(jobURL string) (string, error) {
	loc, err := ParseJobURL(jobURL)
	if err != nil {
		return "", err
	}
	return loc.BasePath, nil
}

// GatherPath returns the path of a file written by the ofcir-gather step of
// the given context.
func GatherPath(basePath, context, file string) string {
	return fmt.Sprintf("%s/artifacts/%s/ofcir-gather/artifacts/%s", basePath, context, file)
}

// Path joins a job base path and a path relative to its artifacts tree.
func Path(basePath string, elems ...string) string {
	return strings.Join(append([]string{basePath, "artifacts"}, elems...), "/")
}
