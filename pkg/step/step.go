// Package step extracts the multi-stage test steps a job executed from the
// junit report ci-operator uploads with its artifacts.
package step

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/prowscope/pkg/artifact"
	"github.com/3leaps/prowscope/pkg/prowjob"
)

const junitFile = "junit_operator.xml"

// Step is one executed step of a job.
type Step struct {
	Job      *prowjob.Job
	Name     string
	State    string
	Duration time.Duration
	Details  string
}

type junitCase struct {
	Name      string   `xml:"name,attr"`
	Time      float64  `xml:"time,attr"`
	Failure   *message `xml:"failure"`
	Error     *message `xml:"error"`
	Skipped   *message `xml:"skipped"`
	SystemOut string   `xml:"system-out"`
}

type message struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

func (m *message) String() string {
	if m == nil {
		return ""
	}
	if text := strings.TrimSpace(m.Text); text != "" {
		return text
	}
	return m.Message
}

type junitSuite struct {
	Cases []junitCase `xml:"testcase"`
}

// junitReport decodes either a <testsuites> or a bare <testsuite> root.
type junitReport struct {
	Suites []junitSuite `xml:"testsuite"`
	Cases  []junitCase  `xml:"testcase"`
}

func (r *junitReport) cases() []junitCase {
	out := append([]junitCase(nil), r.Cases...)
	for _, s := range r.Suites {
		out = append(out, s.Cases...)
	}
	return out
}

// ParseJUnit returns the steps of job recorded in a junit report.
// Test cases that are not multi-stage steps of the job context are ignored,
// as are skipped steps.
func ParseJUnit(data []byte, job *prowjob.Job) ([]Step, error) {
	var report junitReport
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode junit report: %w", err)
	}

	prefix := fmt.Sprintf("Run multi-stage test %s - %s-", job.Context, job.Context)
	const suffix = " container test"

	var steps []Step
	for _, tc := range report.cases() {
		if tc.Skipped != nil {
			continue
		}
		if !strings.HasPrefix(tc.Name, prefix) || !strings.HasSuffix(tc.Name, suffix) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(tc.Name, prefix), suffix)
		if name == "" {
			continue
		}

		s := Step{
			Job:      job,
			Name:     name,
			State:    prowjob.StateSuccess,
			Duration: time.Duration(tc.Time * float64(time.Second)),
		}
		switch {
		case tc.Failure != nil:
			s.State = prowjob.StateFailure
			s.Details = tc.Failure.String()
		case tc.Error != nil:
			s.State = prowjob.StateFailure
			s.Details = tc.Error.String()
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// Extractor reads junit reports for jobs.
type Extractor struct {
	store  *artifact.Store
	logger *zap.Logger
}

// NewExtractor returns an Extractor reading from store.
func NewExtractor(store *artifact.Store, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{store: store, logger: logger}
}

// Extract returns the steps of all jobs. Jobs without a readable report
// contribute no steps.
func (e *Extractor) Extract(ctx context.Context, jobs []*prowjob.Job) []Step {
	var steps []Step
	for _, job := range jobs {
		steps = append(steps, e.extractJob(ctx, job)...)
	}
	e.logger.Info("Extracted job steps", zap.Int("jobs", len(jobs)), zap.Int("steps", len(steps)))
	return steps
}

func (e *Extractor) extractJob(ctx context.Context, job *prowjob.Job) []Step {
	log := e.logger.With(zap.String("job", job.Name()), zap.String("build_id", job.BuildID()))

	base, err := artifact.BasePathFromURL(job.Status.URL)
	if err != nil {
		log.Warn("Cannot derive artifact path from job url", zap.Error(err))
		return nil
	}

	key := artifact.Path(base, junitFile)
	data, err := e.store.Get(ctx, key)
	if err != nil {
		if artifact.IsAbsent(err) {
			log.Debug("No junit report found", zap.String("path", key))
		} else {
			log.Warn("Failed to fetch junit report", zap.String("path", key), zap.Error(err))
		}
		return nil
	}

	steps, err := ParseJUnit(data, job)
	if err != nil {
		log.Warn("Failed to parse junit report", zap.String("path", key), zap.Error(err))
		return nil
	}
	return steps
}
