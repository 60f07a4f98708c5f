// Package metrics exposes the statistics of a scrape run as Prometheus
// metrics and pushes them to a Pushgateway. Scrapes are short-lived batch
// runs, so metrics are pushed rather than served.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/3leaps/prowscope/pkg/scraper"
)

const (
	// Namespace is the namespace for all prowscope metrics.
	Namespace = "prowscope"

	// Subsystem is the subsystem for scrape metrics.
	Subsystem = "scrape"
)

// ScrapeMetrics holds the gauges describing the last scrape.
type ScrapeMetrics struct {
	registry *prometheus.Registry

	JobsReceived  prometheus.Gauge
	JobsRejected  *prometheus.GaugeVec
	JobsKnown     prometheus.Gauge
	JobsWritten   prometheus.Gauge
	StepsWritten  prometheus.Gauge
	UsagesWritten prometheus.Gauge
	Duration      prometheus.Gauge
	LastSuccess   prometheus.Gauge
	LastFailure   prometheus.Gauge
}

// NewScrapeMetrics creates the scrape metrics on a private registry.
func NewScrapeMetrics() *ScrapeMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &ScrapeMetrics{
		registry:      reg,
		JobsReceived:  gauge("jobs_received", "Number of jobs in the feed"),
		JobsKnown:     gauge("jobs_known", "Number of selected jobs already stored"),
		JobsWritten:   gauge("jobs_written", "Number of job events written"),
		StepsWritten:  gauge("steps_written", "Number of step events written"),
		UsagesWritten: gauge("usages_written", "Number of usage events written"),
		Duration:      gauge("duration_seconds", "Duration of the scrape in seconds"),
		LastSuccess:   gauge("last_success_timestamp_seconds", "Unix time of the last successful scrape"),
		LastFailure:   gauge("last_failure_timestamp_seconds", "Unix time of the last failed scrape"),
		JobsRejected: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "jobs_rejected",
				Help:      "Number of jobs rejected by the filter",
			},
			[]string{"reason"},
		),
	}
}

// Registry returns the registry holding the metrics.
func (m *ScrapeMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records a completed scrape.
func (m *ScrapeMetrics) Observe(s *scraper.Summary, at time.Time) {
	m.JobsReceived.Set(float64(s.Received))
	for reason, n := range s.Rejected {
		m.JobsRejected.WithLabelValues(string(reason)).Set(float64(n))
	}
	m.JobsKnown.Set(float64(s.Known))
	m.JobsWritten.Set(float64(s.Jobs))
	m.StepsWritten.Set(float64(s.Steps))
	m.UsagesWritten.Set(float64(s.Usages))
	m.Duration.Set(s.Duration.Seconds())
	m.LastSuccess.Set(float64(at.Unix()))
}

// ObserveFailure records a failed scrape.
func (m *ScrapeMetrics) ObserveFailure(at time.Time) {
	m.LastFailure.Set(float64(at.Unix()))
}

// Push sends the metrics to the Pushgateway at url, replacing the metrics
// previously pushed under job.
func (m *ScrapeMetrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
