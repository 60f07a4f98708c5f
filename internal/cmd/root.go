// Package cmd implements the prowscope command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/prowscope/internal/config"
	"github.com/3leaps/prowscope/internal/observability"
)

// VersionInfo describes the running binary.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var versionInfo = VersionInfo{
	Version:   "dev",
	Commit:    "unknown",
	BuildDate: "unknown",
}

var (
	cfgFile  string
	envFile  string
	logLevel string
	verbose  bool

	appConfig *config.Config
	runID     string
)

var rootCmd = &cobra.Command{
	Use:   "prowscope",
	Short: "Scrape Prow CI jobs and report on their health",
	Long: `prowscope ingests the jobs of a Prow CI feed into Elasticsearch, enriched
with machine metadata and step results, and publishes periodic health reports
to Slack.

Examples:
  # Ingest new jobs
  prowscope scrape

  # Show what would be ingested without writing
  prowscope scrape --dry-run

  # Publish the weekly report
  prowscope report --interval week

  # List duplicate job documents of the current week
  prowscope dedupe`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initialize,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file (default .env when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// initialize loads configuration and the logger before any subcommand runs.
func initialize(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := config.Options{ConfigFile: cfgFile, EnvFile: envFile}
	if logLevel != "" {
		opts.Overrides = map[string]any{
			"logging": map[string]any{"level": logLevel},
		}
	}

	cfg, err := config.Load(ctx, opts)
	if err != nil {
		return exitError(ExitConfigInvalid, "Failed to load configuration", err)
	}

	if err := observability.InitCLILogger("prowscope", cfg.Logging.Level, cfg.Logging.Profile, verbose); err != nil {
		return exitError(ExitConfigInvalid, "Failed to initialize logger", err)
	}

	runID = uuid.NewString()
	observability.CLILogger = observability.CLILogger.With(zap.String("run_id", runID))
	appConfig = cfg

	observability.CLILogger.Debug("Configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("config_file", cfgFile),
		zap.String("report_interval", cfg.Report.Interval),
	)
	return nil
}

// currentConfig returns the loaded configuration.
func currentConfig() (*config.Config, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return appConfig, nil
}
