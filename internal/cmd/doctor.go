package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/prowscope/internal/config"
	"github.com/3leaps/prowscope/internal/observability"
	"github.com/3leaps/prowscope/pkg/provider"
)

var doctorTimeout time.Duration

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Check that every configured backend is reachable: the job feed, the
artifact bucket, Elasticsearch and Slack. Unconfigured backends are skipped.

Examples:
  prowscope doctor
  prowscope doctor --timeout 5s`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 10*time.Second, "Timeout of each check")
}

// doctorCheck is a single diagnostic. run returns a short detail on success.
// A nil run marks the check as skipped.
type doctorCheck struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return exitError(ExitConfigInvalid, "Configuration unavailable", err)
	}

	observability.CLILogger.Info("=== prowscope doctor ===")
	if !runChecks(cmd.Context(), doctorChecks(cfg), doctorTimeout) {
		observability.CLILogger.Warn("Some checks failed. Review the output above for details.")
		return exitError(ExitExternalServiceUnavailable, "Diagnostics failed", fmt.Errorf("one or more checks failed"))
	}
	observability.CLILogger.Info("All checks passed")
	return nil
}

// runChecks runs checks in order and reports whether none failed.
func runChecks(ctx context.Context, checks []doctorCheck, timeout time.Duration) bool {
	ok := true
	for i, c := range checks {
		prefix := fmt.Sprintf("[%d/%d] %s...", i+1, len(checks), c.name)
		if c.run == nil {
			observability.CLILogger.Info(prefix + " skipped (not configured)")
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, timeout)
		detail, err := c.run(cctx)
		cancel()

		if err != nil {
			observability.CLILogger.Error(prefix+" failed", zap.Error(err))
			ok = false
			continue
		}
		observability.CLILogger.Info(prefix+" ok", zap.String("detail", detail))
	}
	return ok
}

func doctorChecks(cfg *config.Config) []doctorCheck {
	checks := []doctorCheck{
		{name: "Checking environment", run: func(context.Context) (string, error) {
			return fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH), nil
		}},
		{name: "Checking Crucible access", run: checkCrucible},
		{name: "Checking job feed"},
		{name: "Checking artifact storage"},
		{name: "Checking Elasticsearch"},
		{name: "Checking Slack"},
	}

	if cfg.Feed.URL != "" {
		checks[2].run = func(ctx context.Context) (string, error) {
			return checkFeed(ctx, cfg.Feed.URL)
		}
	}
	if cfg.Storage.Bucket != "" || cfg.Storage.LocalDir != "" {
		checks[3].run = func(ctx context.Context) (string, error) {
			return checkStorage(ctx, cfg.Storage)
		}
	}
	if cfg.Elasticsearch.URL != "" {
		checks[4].run = func(ctx context.Context) (string, error) {
			return checkElasticsearch(ctx, cfg)
		}
	}
	if cfg.Slack.Token != "" {
		checks[5].run = func(ctx context.Context) (string, error) {
			return checkSlack(ctx, slack.New(cfg.Slack.Token))
		}
	}
	return checks
}

// checkCrucible reports the Crucible and gofulmen versions the binary was
// built with.
func checkCrucible(context.Context) (string, error) {
	version := crucible.GetVersion()
	if version.Crucible == "" {
		return "", errors.New("cannot access Crucible")
	}
	observability.CLILogger.Debug("Crucible versions",
		zap.String("crucible_version", version.Crucible),
		zap.String("gofulmen_version", version.Gofulmen))
	return fmt.Sprintf("crucible v%s, gofulmen v%s", version.Crucible, version.Gofulmen), nil
}

func checkFeed(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Status, nil
}

// doctorCheckKey is looked up to prove the bucket answers. It does not
// need to exist.
const doctorCheckKey = "_prowscope/doctor-check"

func checkStorage(ctx context.Context, cfg config.StorageConfig) (string, error) {
	p, err := newArtifactProvider(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer func() { _ = p.Close() }()

	if _, err := p.Head(ctx, doctorCheckKey); err != nil && !provider.IsNotFound(err) {
		return "", err
	}
	if cfg.LocalDir != "" {
		return "local mirror " + cfg.LocalDir, nil
	}
	return "bucket " + cfg.Bucket, nil
}

func checkElasticsearch(ctx context.Context, cfg *config.Config) (string, error) {
	store, err := newEventStore(cfg, observability.CLILogger)
	if err != nil {
		return "", err
	}
	return "current job index " + store.CurrentJobIndex(), store.Ping(ctx)
}

func checkSlack(ctx context.Context, client *slack.Client) (string, error) {
	resp, err := client.AuthTestContext(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("team %s as %s", resp.Team, maskToken(resp.UserID)), nil
}

// maskToken masks all but the last 4 characters of a secret.
func maskToken(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
