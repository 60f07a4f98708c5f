package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/prowscope/pkg/event"
)

func startTimeRange(from, to time.Time) map[string]any {
	return map[string]any{
		"range": map[string]any{
			"job.start_time": map[string]any{
				"gte": from.UTC().Format(time.RFC3339),
				"lt":  to.UTC().Format(time.RFC3339),
			},
		},
	}
}

// QueryJobs returns the jobs started in [from, to) across all weekly job
// indices.
func (s *Store) QueryJobs(ctx context.Context, from, to time.Time) ([]event.JobDetails, error) {
	query := map[string]any{"query": startTimeRange(from, to)}

	var jobs []event.JobDetails
	err := s.scan(ctx, []string{s.jobs.pattern()}, query, func(h hit) error {
		var doc event.JobEvent
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return fmt.Errorf("decode job %s: %w", h.ID, err)
		}
		jobs = append(jobs, doc.Job)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	s.logger.Debug("Queried jobs",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("jobs", len(jobs)),
	)
	return jobs, nil
}

// QueryStepEvents returns the events of the step named name whose job
// started in [from, to).
func (s *Store) QueryStepEvents(ctx context.Context, name string, from, to time.Time) ([]event.StepEvent, error) {
	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					startTimeRange(from, to),
					map[string]any{"term": map[string]any{"step.name": name}},
				},
			},
		},
	}

	var steps []event.StepEvent
	err := s.scan(ctx, []string{s.steps.pattern()}, query, func(h hit) error {
		var doc event.StepEvent
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return fmt.Errorf("decode step %s: %w", h.ID, err)
		}
		steps = append(steps, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	return steps, nil
}
