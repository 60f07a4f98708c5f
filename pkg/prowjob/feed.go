package prowjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/3leaps/prowscope/internal/docschema"
)

// ErrMalformedFeed indicates the feed payload could not be decoded or an
// item lacks a required field.
var ErrMalformedFeed = errors.New("malformed job feed")

// ParseJobList reads a job feed payload, checks it against the job list
// schema and decodes it. Any invalid item fails the whole payload.
func ParseJobList(r io.Reader) (*JobList, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read job feed: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedFeed)
	}

	if err := docschema.JobList.Validate(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFeed, err)
	}

	var list JobList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFeed, err)
	}
	return &list, nil
}

// Fetch retrieves and decodes the job feed at url.
func Fetch(ctx context.Context, client *http.Client, url string) (*JobList, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch job feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch job feed: unexpected status %s", resp.Status)
	}

	return ParseJobList(resp.Body)
}
