package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/prowscope/internal/observability"
	"github.com/3leaps/prowscope/pkg/output"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Find and remove duplicate documents",
	Long: `Scan an index for documents that share the same comparison fields and
delete every copy but the first. Duplicates are listed as JSONL records.

Nothing is deleted unless --dry-run=false is given.

Examples:
  # List duplicates of the current job index
  prowscope dedupe

  # Remove duplicate steps of a given week
  prowscope dedupe --index steps-2024.11 --fields job.build_id,step.name --dry-run=false`,
	Args: cobra.NoArgs,
	RunE: runDedupe,
}

var (
	dedupeIndex  string
	dedupeFields []string
	dedupeDryRun bool
	dedupeOutput string
)

func init() {
	rootCmd.AddCommand(dedupeCmd)
	dedupeCmd.Flags().StringVar(&dedupeIndex, "index", "", "Index to clean (default: current job index)")
	dedupeCmd.Flags().StringSliceVar(&dedupeFields, "fields", nil, "Comparison fields (default: dedupe.fields)")
	dedupeCmd.Flags().BoolVar(&dedupeDryRun, "dry-run", true, "List duplicates without deleting them")
	dedupeCmd.Flags().StringVar(&dedupeOutput, "output", "stdout", "Record destination (stdout or file:<path>)")
}

func runDedupe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := observability.CLILogger
	start := time.Now()

	cfg, err := currentConfig()
	if err != nil {
		return exitError(ExitConfigInvalid, "Configuration unavailable", err)
	}
	if len(dedupeFields) > 0 {
		cfg.Dedupe.Fields = dedupeFields
	}
	if err := cfg.ValidateDedupe(); err != nil {
		return exitError(ExitConfigInvalid, "Invalid configuration", err)
	}

	store, err := newEventStore(cfg, logger)
	if err != nil {
		return exitError(ExitConfigInvalid, "Invalid Elasticsearch configuration", err)
	}
	index := dedupeIndex
	if index == "" {
		index = store.CurrentJobIndex()
	}

	w, cleanup, err := createWriter(dedupeOutput, "dedupe")
	if err != nil {
		return exitError(ExitFileWriteError, "Failed to create output", err)
	}
	defer cleanup()

	dups, err := store.FindDuplicates(ctx, index, cfg.Dedupe.Fields)
	if err != nil {
		logger.Error("Failed to scan for duplicates", zap.String("index", index), zap.Error(err))
		return exitError(ExitExternalServiceUnavailable, "Failed to scan for duplicates", err)
	}

	ids := make([]string, 0, len(dups))
	for _, d := range dups {
		ids = append(ids, d.ID)
		if err := w.WriteDuplicate(ctx, &output.DuplicateRecord{
			Index:    index,
			ID:       d.ID,
			Original: d.Original,
			Fields:   cfg.Dedupe.Fields,
		}); err != nil {
			return exitError(ExitFileWriteError, "Failed to write record", err)
		}
	}

	deleted := 0
	if !dedupeDryRun && len(ids) > 0 {
		if err := store.DeleteDocuments(ctx, index, ids); err != nil {
			logger.Error("Failed to delete duplicates", zap.String("index", index), zap.Error(err))
			return exitError(ExitExternalServiceUnavailable, "Failed to delete duplicates", err)
		}
		deleted = len(ids)
	}

	elapsed := time.Since(start)
	if err := w.WriteSummary(ctx, &output.SummaryRecord{
		Counts:        map[string]int{"duplicates": len(dups), "deleted": deleted},
		Duration:      elapsed,
		DurationHuman: elapsed.String(),
		DryRun:        dedupeDryRun,
	}); err != nil {
		logger.Warn("Failed to write summary record", zap.Error(err))
	}

	logger.Info("Dedupe completed",
		zap.String("index", index),
		zap.Int("duplicates", len(dups)),
		zap.Int("deleted", deleted),
		zap.Bool("dry_run", dedupeDryRun),
	)
	return nil
}
