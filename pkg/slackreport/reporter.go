// Package slackreport delivers reports to a Slack channel as a thread of
// messages and chart uploads.
package slackreport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/3leaps/prowscope/internal/retry"
	"github.com/3leaps/prowscope/pkg/chart"
	"github.com/3leaps/prowscope/pkg/report"
)

// Upload retry policy.
const (
	DefaultUploadAttempts = 3
	DefaultUploadDelay    = 3 * time.Second
)

// Reporter posts reports to one channel.
type Reporter struct {
	client  *slack.Client
	channel string
	retry   retry.Config
	logger  *zap.Logger
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithUploadRetry overrides the upload retry policy.
func WithUploadRetry(attempts int, delay time.Duration) Option {
	return func(r *Reporter) {
		r.retry.MaxAttempts = attempts
		r.retry.InitialDelay = delay
		r.retry.MaxDelay = delay
	}
}

// WithLogger sets the reporter logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reporter) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a Reporter posting to channel through client.
func New(client *slack.Client, channel string, opts ...Option) *Reporter {
	r := &Reporter{
		client:  client,
		channel: channel,
		retry:   retry.Fixed(DefaultUploadAttempts, DefaultUploadDelay, IsTransient),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		r.logger.Warn("Slack call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	return r
}

// IsTransient reports whether a Slack error is worth retrying: rate
// limiting, server errors and network failures.
func IsTransient(err error) bool {
	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		return true
	}
	var status slack.StatusCodeError
	if errors.As(err, &status) {
		return status.Code >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Send posts r as a header message followed by a thread of bucket messages
// and charts. Buckets without executions are skipped. Trends are optional.
func (s *Reporter) Send(ctx context.Context, r *report.Report, trends *report.Trends) error {
	ts, err := s.post(ctx, HeaderBlocks(r), "")
	if err != nil {
		return fmt.Errorf("post header: %w", err)
	}

	if r.SuccessRateForE2EOrSubsystemPeriodicJobs != nil {
		if _, err := s.post(ctx, PeriodicBlocks(r, trends), ts); err != nil {
			return fmt.Errorf("post periodic jobs: %w", err)
		}
		// No empty chart when nothing failed.
		if r.NumberOfFailingE2EOrSubsystemPeriodicJobs > 0 {
			if err := s.upload(ctx, ts, chart.TitleFailedPeriodic, r.Top10FailingE2EOrSubsystemPeriodicJobs, chart.FailingJobs); err != nil {
				return err
			}
		}
	}

	if r.SuccessRateForE2EOrSubsystemPresubmitJobs != nil {
		if _, err := s.post(ctx, PresubmitBlocks(r, trends), ts); err != nil {
			return fmt.Errorf("post presubmit jobs: %w", err)
		}
		if r.NumberOfFailingE2EOrSubsystemPresubmitJobs > 0 {
			if err := s.upload(ctx, ts, chart.TitleFailedPresubmit, r.Top10FailingE2EOrSubsystemPresubmitJobs, chart.FailingJobs); err != nil {
				return err
			}
		}
		if err := s.upload(ctx, ts, chart.TitleTriggeredPresubmit, r.Top5MostTriggeredE2EOrSubsystemJobs, chart.TriggeredJobs); err != nil {
			return err
		}
	}

	if r.SuccessRateForPostsubmitJobs != nil {
		if _, err := s.post(ctx, PostsubmitBlocks(r, trends), ts); err != nil {
			return fmt.Errorf("post postsubmit jobs: %w", err)
		}
		if r.NumberOfFailingPostsubmitJobs > 0 {
			if err := s.upload(ctx, ts, chart.TitleFailedPostsubmit, r.Top10FailingPostsubmitJobs, chart.FailingJobs); err != nil {
				return err
			}
		}
	}

	if len(r.FlakyPeriodicJobs) > 0 {
		if err := s.upload(ctx, ts, chart.TitleFlakyPeriodic, r.FlakyPeriodicJobs, chart.FlakyJobs); err != nil {
			return err
		}
	}

	if _, err := s.post(ctx, MachineLeaseBlocks(r, trends), ts); err != nil {
		return fmt.Errorf("post machine leases: %w", err)
	}
	return nil
}

// post sends blocks, threaded under ts when set, and returns the message
// timestamp.
func (s *Reporter) post(ctx context.Context, blocks []slack.Block, ts string) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionBlocks(blocks...)}
	if ts != "" {
		opts = append(opts, slack.MsgOptionTS(ts))
	}

	_, msgTS, err := s.client.PostMessageContext(ctx, s.channel, opts...)
	if err != nil {
		return "", err
	}
	s.logger.Info("Message sent", zap.String("ts", msgTS))
	return msgTS, nil
}

type renderFunc func(string, []report.IdentifiedJobMetrics) (*chart.Image, error)

func (s *Reporter) upload(ctx context.Context, ts, title string, jobs []report.IdentifiedJobMetrics, render renderFunc) error {
	img, err := render(title, jobs)
	if errors.Is(err, chart.ErrNoData) {
		s.logger.Debug("Skipping empty chart", zap.String("title", title))
		return nil
	}
	if err != nil {
		return err
	}

	err = retry.Retry(ctx, s.retry, func() error {
		_, err := s.client.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
			Reader:          bytes.NewReader(img.Data),
			FileSize:        len(img.Data),
			Filename:        img.Filename,
			Title:           img.Title,
			InitialComment:  img.Title,
			Channel:         s.channel,
			ThreadTimestamp: ts,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", img.Filename, err)
	}

	s.logger.Info("Chart uploaded", zap.String("file", img.Filename))
	return nil
}
