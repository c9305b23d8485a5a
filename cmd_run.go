package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"livability-pipeline/pipeline"
	"livability-pipeline/services"
	"livability-pipeline/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every pending identifier of the input file",
	Long: `Reads the identifier column of the input file and processes every
identifier not yet marked as processed in the checkpoint. Cached records are
reused; everything else is fetched through the browser gateway. Rows are
appended to the output file after every batch.

Ctrl-C stops the run after the current identifier; re-run to resume.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ids, err := storage.LoadIdentifiers(cfg.Input.Path, cfg.Input.Column)
		if err != nil {
			return &pipeline.InputError{Source: cfg.Input.Path, Err: err}
		}
		logger.Info("Loaded %d unique identifiers from %s", len(ids), cfg.Input.Path)

		cache, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer cache.Close()

		summary, err := runPipeline(ctx, cache, ids)
		return reportRun(summary, err)
	},
}

func init() {
	f := runCmd.Flags()
	f.String("output", "", "output CSV the rows are appended to")
	f.Int("batch-size", 0, "identifiers per output flush")
	bindFlags(f.Lookup, map[string]string{
		"output.path": "output",
		"batch.size":  "batch-size",
	})
}

// reportRun prints the summary of a finished or interrupted run. An
// interrupt is not an error: the checkpoint lets the next run resume.
func reportRun(summary *pipeline.Summary, err error) error {
	if summary != nil {
		services.NewInsightService(logger).PrintProgress(os.Stdout, &summary.ProgressReport)
		logger.Info("Run %s: fetched %d, from cache %d", summary.RunID, summary.Fetched, summary.FromCache)
	}
	if errors.Is(err, context.Canceled) {
		logger.Warn("Run interrupted; re-run to resume")
		return nil
	}
	return err
}
