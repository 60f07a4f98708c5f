// Package scraper ingests Prow jobs: it selects the relevant jobs of a feed,
// drops the ones already stored, enriches the rest and writes them to the
// event store together with their steps and machine usages.
package scraper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/prowscope/pkg/event"
	"github.com/3leaps/prowscope/pkg/match"
	"github.com/3leaps/prowscope/pkg/prowjob"
	"github.com/3leaps/prowscope/pkg/step"
	"github.com/3leaps/prowscope/pkg/usage"
)

// DefaultUsageWindow is how far back machine usages are fetched.
const DefaultUsageWindow = 7 * 24 * time.Hour

// Store is the event store as seen by the scraper.
type Store interface {
	ScanBuildIDs(ctx context.Context) (map[string]struct{}, error)
	ScanUsageIdentifiers(ctx context.Context) (map[usage.Identifier]struct{}, error)
	IndexJobs(ctx context.Context, events []event.JobEvent) error
	IndexSteps(ctx context.Context, events []event.StepEvent) error
	IndexUsages(ctx context.Context, events []event.UsageEvent) error
}

// Hydrator attaches machine metadata to jobs.
type Hydrator interface {
	Hydrate(ctx context.Context, jobs []*prowjob.Job)
}

// StepExtractor returns the executed steps of jobs.
type StepExtractor interface {
	Extract(ctx context.Context, jobs []*prowjob.Job) []step.Step
}

// UsageSource returns the machine usages of a time window.
type UsageSource interface {
	Usages(ctx context.Context, start, end time.Time) ([]usage.Usage, error)
}

// Summary contains aggregate statistics from a completed scrape.
type Summary struct {
	// Received is the number of jobs in the feed.
	Received int

	// Rejected counts filtered-out jobs per reason.
	Rejected map[match.Reason]int

	// Known is the number of selected jobs that were already stored.
	Known int

	// Jobs, Steps and Usages are the numbers of documents written.
	Jobs   int
	Steps  int
	Usages int

	// Duration is the total time spent scraping.
	Duration time.Duration
}

// Scraper executes scrapes. A Scraper keeps no state between runs: the
// event store is the only memory of what was already ingested.
type Scraper struct {
	store    Store
	hydrator Hydrator
	steps    StepExtractor
	usages   UsageSource
	filter   *match.JobFilter
	resolver *prowjob.Resolver
	window   time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithFilter sets the job filter (default: match.NewJobFilter(nil)).
func WithFilter(f *match.JobFilter) Option {
	return func(s *Scraper) { s.filter = f }
}

// WithUsages enables machine usage ingestion over the trailing window.
func WithUsages(src UsageSource, window time.Duration) Option {
	return func(s *Scraper) {
		s.usages = src
		if window > 0 {
			s.window = window
		}
	}
}

// WithClock overrides the clock used for the usage window.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.now = now }
}

// WithLogger sets the scraper logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scraper) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a new scraper.
func New(store Store, hydrator Hydrator, steps StepExtractor, opts ...Option) *Scraper {
	s := &Scraper{
		store:    store,
		hydrator: hydrator,
		steps:    steps,
		filter:   match.NewJobFilter(nil),
		window:   DefaultUsageWindow,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver = prowjob.NewResolver(s.logger)
	return s
}

// Execute ingests jobs. Store errors abort the run; enrichment failures only
// leave individual jobs without metadata or steps.
func (s *Scraper) Execute(ctx context.Context, jobs []*prowjob.Job) (*Summary, error) {
	start := time.Now()
	summary := &Summary{Received: len(jobs), Rejected: make(map[match.Reason]int)}
	s.logger.Info("Processing jobs", zap.Int("jobs", len(jobs)))

	selected := make([]*prowjob.Job, 0, len(jobs))
	for _, j := range jobs {
		if reason := s.filter.Evaluate(j); reason != match.ReasonAccepted {
			summary.Rejected[reason]++
			continue
		}
		j.Context = s.resolver.Resolve(j)
		selected = append(selected, j)
	}

	known, err := s.store.ScanBuildIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan known jobs: %w", err)
	}

	fresh := make([]*prowjob.Job, 0, len(selected))
	for _, j := range selected {
		if _, ok := known[j.BuildID()]; ok {
			summary.Known++
			continue
		}
		// Repeated build ids within the feed are ingested once.
		known[j.BuildID()] = struct{}{}
		fresh = append(fresh, j)
	}
	s.logger.Info("Selected new jobs",
		zap.Int("selected", len(selected)),
		zap.Int("known", summary.Known),
		zap.Int("new", len(fresh)))

	s.hydrator.Hydrate(ctx, fresh)
	steps := s.steps.Extract(ctx, fresh)

	var usages []usage.Usage
	if s.usages != nil {
		usages, err = s.newUsages(ctx)
		if err != nil {
			return nil, err
		}
	}

	jobEvents := make([]event.JobEvent, len(fresh))
	for i, j := range fresh {
		jobEvents[i] = event.NewJobEvent(j)
	}
	s.logger.Info("Pushing jobs", zap.Int("jobs", len(jobEvents)))
	if err := s.store.IndexJobs(ctx, jobEvents); err != nil {
		return nil, fmt.Errorf("index jobs: %w", err)
	}
	summary.Jobs = len(jobEvents)

	stepEvents := make([]event.StepEvent, len(steps))
	for i, st := range steps {
		stepEvents[i] = event.NewStepEvent(st)
	}
	s.logger.Info("Pushing steps", zap.Int("steps", len(stepEvents)))
	if err := s.store.IndexSteps(ctx, stepEvents); err != nil {
		return nil, fmt.Errorf("index steps: %w", err)
	}
	summary.Steps = len(stepEvents)

	if s.usages != nil {
		usageEvents := make([]event.UsageEvent, len(usages))
		for i, u := range usages {
			usageEvents[i] = event.NewUsageEvent(u)
		}
		s.logger.Info("Pushing machine usages", zap.Int("usages", len(usageEvents)))
		if err := s.store.IndexUsages(ctx, usageEvents); err != nil {
			return nil, fmt.Errorf("index usages: %w", err)
		}
		summary.Usages = len(usageEvents)
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// newUsages returns the usages of the trailing window not yet stored.
func (s *Scraper) newUsages(ctx context.Context) ([]usage.Usage, error) {
	known, err := s.store.ScanUsageIdentifiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan known usages: %w", err)
	}

	end := s.now()
	all, err := s.usages.Usages(ctx, end.Add(-s.window), end)
	if err != nil {
		return nil, fmt.Errorf("fetch usages: %w", err)
	}

	var fresh []usage.Usage
	for _, u := range all {
		if _, ok := known[u.Identifier()]; ok {
			continue
		}
		known[u.Identifier()] = struct{}{}
		fresh = append(fresh, u)
	}
	return fresh, nil
}
