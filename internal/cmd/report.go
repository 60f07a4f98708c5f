package cmd

import (
	"time"

	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/prowscope/internal/observability"
	"github.com/3leaps/prowscope/pkg/report"
	"github.com/3leaps/prowscope/pkg/slackreport"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Publish the job health report",
	Long: `Compute the job health report of the last week or month, compare it with
the preceding window, and publish it to Slack as a threaded message with
charts.

Examples:
  prowscope report
  prowscope report --interval month
  prowscope report --dry-run`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

var (
	reportDryRun   bool
	reportOutput   string
	reportInterval string
	reportEnd      string
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().BoolVar(&reportDryRun, "dry-run", false, "Emit the report as JSONL instead of posting it")
	reportCmd.Flags().StringVar(&reportOutput, "output", "stdout", "Dry-run destination (stdout or file:<path>)")
	reportCmd.Flags().StringVar(&reportInterval, "interval", "", "Report interval (week|month), overrides report.interval")
	reportCmd.Flags().StringVar(&reportEnd, "now", "", "Reference time (RFC3339) the window is computed from")
}

// reportRecord is the dry-run payload of a report.
type reportRecord struct {
	Interval string         `json:"interval"`
	Current  *report.Report `json:"current"`
	Previous *report.Report `json:"previous"`
	Trends   report.Trends  `json:"trends"`
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := observability.CLILogger

	cfg, err := currentConfig()
	if err != nil {
		return exitError(ExitConfigInvalid, "Configuration unavailable", err)
	}
	if reportInterval != "" {
		cfg.Report.Interval = reportInterval
	}
	if err := cfg.ValidateReport(reportDryRun); err != nil {
		return exitError(ExitConfigInvalid, "Invalid configuration", err)
	}

	interval, err := report.ParseInterval(cfg.Report.Interval)
	if err != nil {
		return exitError(ExitInvalidArgument, "Invalid --interval value", err)
	}

	now := time.Now().UTC()
	if reportEnd != "" {
		now, err = time.Parse(time.RFC3339, reportEnd)
		if err != nil {
			return exitError(ExitInvalidArgument, "Invalid --now value", err)
		}
	}
	from, to := interval.Window(now)
	prevFrom, prevTo := interval.Previous(from)

	store, err := newEventStore(cfg, logger)
	if err != nil {
		return exitError(ExitConfigInvalid, "Invalid Elasticsearch configuration", err)
	}
	reporter := report.NewReporter(store, logger)

	logger.Info("Building report",
		zap.String("interval", string(interval)),
		zap.Time("from", from),
		zap.Time("to", to),
	)
	current, err := reporter.GetReport(ctx, from, to)
	if err != nil {
		logger.Error("Failed to build report", zap.Error(err))
		return exitError(ExitExternalServiceUnavailable, "Failed to build report", err)
	}
	previous, err := reporter.GetReport(ctx, prevFrom, prevTo)
	if err != nil {
		logger.Error("Failed to build previous report", zap.Error(err))
		return exitError(ExitExternalServiceUnavailable, "Failed to build previous report", err)
	}
	trends := report.DetectTrends(current, previous)

	if reportDryRun {
		w, cleanup, err := createWriter(reportOutput, "report")
		if err != nil {
			return exitError(ExitFileWriteError, "Failed to create output", err)
		}
		defer cleanup()
		rec := &reportRecord{
			Interval: string(interval),
			Current:  current,
			Previous: previous,
			Trends:   trends,
		}
		if err := w.WriteReport(ctx, rec); err != nil {
			return exitError(ExitFileWriteError, "Failed to write report", err)
		}
		return nil
	}

	sender := slackreport.New(
		slack.New(cfg.Slack.Token),
		cfg.Slack.Channel,
		slackreport.WithUploadRetry(cfg.Slack.UploadAttempts, cfg.Slack.UploadDelay),
		slackreport.WithLogger(logger),
	)
	if err := sender.Send(ctx, current, &trends); err != nil {
		logger.Error("Failed to send report", zap.Error(err))
		return exitError(ExitExternalServiceUnavailable, "Failed to send report", err)
	}

	logger.Info("Report sent",
		zap.String("channel", cfg.Slack.Channel),
		zap.Int("periodic_jobs", current.NumberOfE2EOrSubsystemPeriodicJobs),
		zap.Int("presubmit_jobs", current.NumberOfE2EOrSubsystemPresubmitJobs),
		zap.Int("postsubmit_jobs", current.NumberOfPostsubmitJobs),
	)
	return nil
}
