package eventstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	schemasassets "github.com/3leaps/prowscope/internal/assets/schemas"
	"github.com/3leaps/prowscope/pkg/event"
	"github.com/3leaps/prowscope/pkg/usage"
)

// Indices names the index families of the store.
type Indices struct {
	Jobs   string
	Steps  string
	Usages string
}

// Store reads and writes events. Writes always go to the index of the
// current ISO week; scans cover the current and the previous week.
type Store struct {
	client *es.Client
	jobs   weeklyIndex
	steps  weeklyIndex
	usages weeklyIndex
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the clock used to select weekly indices.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store using client. An empty Usages basename disables the
// usage index family.
func New(client *es.Client, indices Indices, opts ...Option) *Store {
	s := &Store{
		client: client,
		jobs:   weeklyIndex{basename: indices.Jobs, schema: schemasassets.JobsIndex},
		steps:  weeklyIndex{basename: indices.Steps, schema: schemasassets.StepsIndex},
		usages: weeklyIndex{basename: indices.Usages, schema: schemasassets.UsagesIndex},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentJobIndex returns the job index writes currently go to.
func (s *Store) CurrentJobIndex() string {
	return s.jobs.current(s.now())
}

// EnsureIndices creates the current weekly indices that do not exist yet.
func (s *Store) EnsureIndices(ctx context.Context) error {
	now := s.now()
	for _, idx := range s.families() {
		if err := s.ensure(ctx, idx.current(now), idx.schema); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) families() []weeklyIndex {
	families := []weeklyIndex{s.jobs, s.steps}
	if s.usages.basename != "" {
		families = append(families, s.usages)
	}
	return families
}

func (s *Store) recent(idx weeklyIndex) []string {
	now := s.now()
	return []string{idx.current(now), idx.previous(now)}
}

// ScanBuildIDs returns the build ids of the jobs stored in the current and
// the previous weekly job index.
func (s *Store) ScanBuildIDs(ctx context.Context) (map[string]struct{}, error) {
	query := map[string]any{
		"_source": []string{"job.build_id"},
		"query":   map[string]any{"match_all": map[string]any{}},
	}

	ids := make(map[string]struct{})
	err := s.scan(ctx, s.recent(s.jobs), query, func(h hit) error {
		var doc struct {
			Job struct {
				BuildID string `json:"build_id"`
			} `json:"job"`
		}
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return fmt.Errorf("decode job %s: %w", h.ID, err)
		}
		ids[doc.Job.BuildID] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan build ids: %w", err)
	}

	s.logger.Debug("Scanned known build ids", zap.Int("build_ids", len(ids)))
	return ids, nil
}

// ScanUsageIdentifiers returns the identifiers of the usages stored in the
// current and the previous weekly usage index.
func (s *Store) ScanUsageIdentifiers(ctx context.Context) (map[usage.Identifier]struct{}, error) {
	ids := make(map[usage.Identifier]struct{})
	if s.usages.basename == "" {
		return ids, nil
	}

	query := map[string]any{
		"_source": []string{"usage.name", "usage.plan"},
		"query":   map[string]any{"match_all": map[string]any{}},
	}
	err := s.scan(ctx, s.recent(s.usages), query, func(h hit) error {
		var doc struct {
			Usage struct {
				Name string `json:"name"`
				Plan string `json:"plan"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return fmt.Errorf("decode usage %s: %w", h.ID, err)
		}
		ids[usage.Identifier{Name: doc.Usage.Name, Plan: doc.Usage.Plan}] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan usage identifiers: %w", err)
	}
	return ids, nil
}

// IndexJobs writes job events to the current job index.
func (s *Store) IndexJobs(ctx context.Context, events []event.JobEvent) error {
	docs := make([]any, len(events))
	for i := range events {
		docs[i] = events[i]
	}
	return s.bulkIndex(ctx, s.jobs.current(s.now()), docs)
}

// IndexSteps writes step events to the current step index.
func (s *Store) IndexSteps(ctx context.Context, events []event.StepEvent) error {
	docs := make([]any, len(events))
	for i := range events {
		docs[i] = events[i]
	}
	return s.bulkIndex(ctx, s.steps.current(s.now()), docs)
}

// IndexUsages writes usage events to the current usage index.
func (s *Store) IndexUsages(ctx context.Context, events []event.UsageEvent) error {
	if s.usages.basename == "" {
		return fmt.Errorf("usage index is not configured")
	}
	docs := make([]any, len(events))
	for i := range events {
		docs[i] = events[i]
	}
	return s.bulkIndex(ctx, s.usages.current(s.now()), docs)
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// bulkIndex indexes docs into index and refreshes it. An empty batch still
// refreshes so subsequent scans are consistent.
func (s *Store) bulkIndex(ctx context.Context, index string, docs []any) error {
	if len(docs) > 0 {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		meta := map[string]any{"index": map[string]any{"_index": index}}
		for _, doc := range docs {
			if err := enc.Encode(meta); err != nil {
				return fmt.Errorf("failed to encode meta: %w", err)
			}
			if err := enc.Encode(doc); err != nil {
				return fmt.Errorf("failed to encode document: %w", err)
			}
		}

		if err := s.bulk(ctx, &buf); err != nil {
			return fmt.Errorf("bulk index %s: %w", index, err)
		}
		s.logger.Info("Indexed documents", zap.String("index", index), zap.Int("documents", len(docs)))
	}

	return s.refresh(ctx, index)
}

// bulk sends an NDJSON bulk body and combines per-item failures.
func (s *Store) bulk(ctx context.Context, body io.Reader) error {
	res, err := s.client.Bulk(body, s.client.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk request error: %s", res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if !br.Errors {
		return nil
	}

	var errs error
	for _, item := range br.Items {
		for op, result := range item {
			if result.Error != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s %s: %s: %s", op, result.ID, result.Error.Type, result.Error.Reason))
			}
		}
	}
	return errs
}
