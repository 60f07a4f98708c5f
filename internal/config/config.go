// Package config loads prowscope configuration from defaults, an optional
// YAML file, an optional .env file and the environment.
package config

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config is the complete prowscope configuration.
type Config struct {
	Logging       LoggingConfig       `mapstructure:"logging"`
	Feed          FeedConfig          `mapstructure:"feed"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Slack         SlackConfig         `mapstructure:"slack"`
	Equinix       EquinixConfig       `mapstructure:"equinix"`
	Report        ReportConfig        `mapstructure:"report"`
	Match         MatchConfig         `mapstructure:"match"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Dedupe        DedupeConfig        `mapstructure:"dedupe"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// FeedConfig configures the job feed.
type FeedConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig configures the artifact bucket.
type StorageConfig struct {
	Bucket    string  `mapstructure:"bucket"`
	Endpoint  string  `mapstructure:"endpoint"`
	Region    string  `mapstructure:"region"`
	Profile   string  `mapstructure:"profile"`
	Anonymous bool    `mapstructure:"anonymous"`
	LocalDir  string  `mapstructure:"local_dir"`
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

// ElasticsearchConfig configures the event store.
type ElasticsearchConfig struct {
	URL                string `mapstructure:"url"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	MaxRetries         int    `mapstructure:"max_retries"`
	JobIndex           string `mapstructure:"job_index"`
	StepIndex          string `mapstructure:"step_index"`
	UsageIndex         string `mapstructure:"usage_index"`
}

// SlackConfig configures report delivery.
type SlackConfig struct {
	Token          string        `mapstructure:"token"`
	Channel        string        `mapstructure:"channel"`
	UploadAttempts int           `mapstructure:"upload_attempts"`
	UploadDelay    time.Duration `mapstructure:"upload_delay"`
}

// EquinixConfig configures machine usage ingestion. Ingestion is disabled
// unless both ProjectID and Token are set.
type EquinixConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	ProjectID string `mapstructure:"project_id"`
	Token     string `mapstructure:"token"`
}

// Enabled reports whether usage ingestion is configured.
func (c EquinixConfig) Enabled() bool {
	return c.ProjectID != "" && c.Token != ""
}

// ReportConfig configures report windows.
type ReportConfig struct {
	Interval string `mapstructure:"interval"`
}

// MatchConfig configures the job name allow-list.
type MatchConfig struct {
	Includes []string `mapstructure:"includes"`
	Excludes []string `mapstructure:"excludes"`
}

// MetricsConfig configures the scrape metrics push.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// DedupeConfig configures duplicate cleanup.
type DedupeConfig struct {
	Fields []string `mapstructure:"fields"`
}

// ValidationError lists the missing or invalid settings of a command.
type ValidationError struct {
	Command string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %v", e.Command, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func required(value, key string) error {
	if value == "" {
		return fmt.Errorf("%s is required", key)
	}
	return nil
}

func (c *Config) validateElasticsearch() error {
	return multierr.Combine(
		required(c.Elasticsearch.URL, "elasticsearch.url"),
		required(c.Elasticsearch.JobIndex, "elasticsearch.job_index"),
		required(c.Elasticsearch.StepIndex, "elasticsearch.step_index"),
	)
}

// ValidateScrape checks the settings used by the scrape command. A dry run
// does not need an event store.
func (c *Config) ValidateScrape(dryRun bool) error {
	err := required(c.Feed.URL, "feed.url")
	if c.Storage.LocalDir == "" {
		err = multierr.Append(err, required(c.Storage.Bucket, "storage.bucket"))
	}
	if !dryRun {
		err = multierr.Append(err, c.validateElasticsearch())
	}
	if c.Equinix.Enabled() && c.Elasticsearch.UsageIndex == "" && !dryRun {
		err = multierr.Append(err, fmt.Errorf("elasticsearch.usage_index is required when equinix is configured"))
	}
	if err != nil {
		return &ValidationError{Command: "scrape", Err: err}
	}
	return nil
}

// ValidateReport checks the settings used by the report command. A dry run
// does not need Slack.
func (c *Config) ValidateReport(dryRun bool) error {
	err := c.validateElasticsearch()
	switch c.Report.Interval {
	case "week", "month":
	default:
		err = multierr.Append(err, fmt.Errorf("report.interval must be week or month, got %q", c.Report.Interval))
	}
	if !dryRun {
		err = multierr.Append(err, multierr.Combine(
			required(c.Slack.Token, "slack.token"),
			required(c.Slack.Channel, "slack.channel"),
		))
	}
	if err != nil {
		return &ValidationError{Command: "report", Err: err}
	}
	return nil
}

// ValidateDedupe checks the settings used by the dedupe command.
func (c *Config) ValidateDedupe() error {
	err := required(c.Elasticsearch.URL, "elasticsearch.url")
	if len(c.Dedupe.Fields) == 0 {
		err = multierr.Append(err, fmt.Errorf("dedupe.fields must not be empty"))
	}
	if err != nil {
		return &ValidationError{Command: "dedupe", Err: err}
	}
	return nil
}
