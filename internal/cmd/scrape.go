package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	pathsassets "github.com/3leaps/prowscope/internal/assets/paths"
	"github.com/3leaps/prowscope/internal/metrics"
	"github.com/3leaps/prowscope/internal/observability"
	"github.com/3leaps/prowscope/pkg/cloudmeta"
	"github.com/3leaps/prowscope/pkg/hydrate"
	"github.com/3leaps/prowscope/pkg/match"
	"github.com/3leaps/prowscope/pkg/output"
	"github.com/3leaps/prowscope/pkg/prowjob"
	"github.com/3leaps/prowscope/pkg/scraper"
	"github.com/3leaps/prowscope/pkg/step"
	"github.com/3leaps/prowscope/pkg/usage"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Ingest new jobs from the Prow feed",
	Long: `Fetch the Prow job feed, select the finished jobs of interest, enrich them
with machine metadata and step results, and index the ones not yet stored.
Machine usages are ingested as well when Equinix credentials are configured.

Running scrape twice in a row writes nothing the second time.

Examples:
  prowscope scrape
  prowscope scrape --dry-run --output file:/tmp/scrape.jsonl`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

var (
	scrapeDryRun bool
	scrapeOutput string
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
	scrapeCmd.Flags().BoolVar(&scrapeDryRun, "dry-run", false, "Emit JSONL records instead of indexing")
	scrapeCmd.Flags().StringVar(&scrapeOutput, "output", "stdout", "Dry-run destination (stdout or file:<path>)")
}

func runScrape(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := observability.CLILogger

	cfg, err := currentConfig()
	if err != nil {
		return exitError(ExitConfigInvalid, "Configuration unavailable", err)
	}
	if err := cfg.ValidateScrape(scrapeDryRun); err != nil {
		return exitError(ExitConfigInvalid, "Invalid configuration", err)
	}

	matcher, err := match.New(match.Config{Includes: cfg.Match.Includes, Excludes: cfg.Match.Excludes})
	if err != nil {
		return exitError(ExitInvalidArgument, "Invalid match patterns", err)
	}

	legacy, err := cloudmeta.ParseLegacyProfiles(pathsassets.EquinixLegacyPaths)
	if err != nil {
		return exitError(ExitFailure, "Invalid embedded legacy profiles", err)
	}

	prov, err := newArtifactProvider(ctx, cfg.Storage)
	if err != nil {
		logger.Error("Failed to create provider", zap.Error(err))
		return exitError(ExitExternalServiceUnavailable, "Failed to connect to artifact storage", err)
	}
	defer func() { _ = prov.Close() }()
	artifacts := newArtifactStore(prov, cfg.Storage, logger)

	var (
		store   scraper.Store
		w       output.Writer
		cleanup func()
	)
	switch {
	case scrapeDryRun:
		w, cleanup, err = createWriter(scrapeOutput, "scrape")
		if err != nil {
			return exitError(ExitFileWriteError, "Failed to create output", err)
		}
		var scanner scraper.Scanner
		if cfg.Elasticsearch.URL != "" {
			es, err := newEventStore(cfg, logger)
			if err != nil {
				cleanup()
				return exitError(ExitConfigInvalid, "Invalid Elasticsearch configuration", err)
			}
			scanner = es
		}
		store = scraper.NewDryRunStore(scanner, w)
	default:
		es, err := newEventStore(cfg, logger)
		if err != nil {
			return exitError(ExitConfigInvalid, "Invalid Elasticsearch configuration", err)
		}
		if err := es.EnsureIndices(ctx); err != nil {
			logger.Error("Failed to prepare indices", zap.Error(err))
			return exitError(ExitExternalServiceUnavailable, "Failed to prepare indices", err)
		}
		store = es
	}
	if cleanup != nil {
		defer cleanup()
	}

	opts := []scraper.Option{
		scraper.WithFilter(match.NewJobFilter(matcher)),
		scraper.WithLogger(logger),
	}
	if cfg.Equinix.Enabled() {
		client := usage.NewClient(usage.Config{
			BaseURL:   cfg.Equinix.BaseURL,
			ProjectID: cfg.Equinix.ProjectID,
			Token:     cfg.Equinix.Token,
		}, &http.Client{Timeout: cfg.Feed.Timeout}, logger)
		opts = append(opts, scraper.WithUsages(client, scraper.DefaultUsageWindow))
	}

	scr := scraper.New(
		store,
		hydrate.New(artifacts, cloudmeta.DefaultRegistry(legacy, logger), logger),
		step.NewExtractor(artifacts, logger),
		opts...,
	)

	m := metrics.NewScrapeMetrics()

	logger.Info("Fetching job feed", zap.String("url", cfg.Feed.URL))
	list, err := prowjob.Fetch(ctx, &http.Client{Timeout: cfg.Feed.Timeout}, cfg.Feed.URL)
	if err != nil {
		logger.Error("Failed to fetch job feed", zap.Error(err))
		m.ObserveFailure(time.Now())
		pushMetrics(cmd, m)
		if errors.Is(err, prowjob.ErrMalformedFeed) {
			return exitError(ExitFailure, "Malformed job feed", err)
		}
		return exitError(ExitExternalServiceUnavailable, "Failed to fetch job feed", err)
	}

	summary, err := scr.Execute(ctx, list.Items)
	if err != nil {
		m.ObserveFailure(time.Now())
		pushMetrics(cmd, m)
		if ctx.Err() != nil {
			return exitError(ExitSignalInt, "Scrape cancelled", err)
		}
		logger.Error("Scrape failed", zap.Error(err))
		if scrapeDryRun {
			writeScrapeError(ctx, w, err)
		}
		return exitError(ExitExternalServiceUnavailable, "Scrape failed", err)
	}

	m.Observe(summary, time.Now())
	if scrapeDryRun {
		writeScrapeSummary(ctx, w, summary)
	} else {
		pushMetrics(cmd, m)
	}

	logger.Info("Scrape completed",
		zap.Int("received", summary.Received),
		zap.Int("known", summary.Known),
		zap.Int("jobs", summary.Jobs),
		zap.Int("steps", summary.Steps),
		zap.Int("usages", summary.Usages),
		zap.Duration("duration", summary.Duration),
	)
	return nil
}

// writeScrapeSummary emits the summary record closing a dry run.
func writeScrapeSummary(ctx context.Context, w output.Writer, summary *scraper.Summary) {
	counts := map[string]int{
		"received": summary.Received,
		"known":    summary.Known,
		"jobs":     summary.Jobs,
		"steps":    summary.Steps,
		"usages":   summary.Usages,
	}
	for reason, n := range summary.Rejected {
		counts["rejected_"+string(reason)] = n
	}
	if err := w.WriteSummary(ctx, &output.SummaryRecord{
		Counts:        counts,
		Duration:      summary.Duration,
		DurationHuman: summary.Duration.String(),
		DryRun:        true,
	}); err != nil {
		observability.CLILogger.Warn("Failed to write summary record", zap.Error(err))
	}
}

// writeScrapeError records a failed dry run in the output stream.
func writeScrapeError(ctx context.Context, w output.Writer, cause error) {
	if err := w.WriteError(ctx, &output.ErrorRecord{
		Code:    output.ErrCodeUnavailable,
		Message: "scrape failed",
		Details: map[string]string{"error": cause.Error()},
	}); err != nil {
		observability.CLILogger.Warn("Failed to write error record", zap.Error(err))
	}
}

// pushMetrics pushes m when a Pushgateway is configured. Push failures are
// logged and never fail the command.
func pushMetrics(cmd *cobra.Command, m *metrics.ScrapeMetrics) {
	cfg := appConfig
	if cfg == nil || cfg.Metrics.PushgatewayURL == "" {
		return
	}
	if err := m.Push(cmd.Context(), cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		observability.CLILogger.Warn("Failed to push metrics", zap.Error(err))
	}
}
