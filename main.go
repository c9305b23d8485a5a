package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"livability-pipeline/config"
	"livability-pipeline/models"
	"livability-pipeline/pipeline"
	"livability-pipeline/scraper/aarp"
	"livability-pipeline/storage"
	"livability-pipeline/utils"
)

var (
	v       = config.New()
	cfg     *config.Config
	logger  *utils.Logger
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "livability",
	Short: "Retrieve, cache and merge AARP livability reports",
	Long: `Looks up the AARP Livability Index for every identifier (zip code or
address) of an input file, parses each report into scores and demographics,
caches the results and merges them onto a wide dataset.

Runs are checkpointed: an interrupted run resumes where it stopped and
identifiers that failed are retried on the next run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		}
		c, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = c

		l, err := utils.NewLogger(utils.LogOptions{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			File:   cfg.Log.File,
		})
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logger.Close()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./livability.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("input", "", "input file (.csv or .xlsx) holding the identifiers")
	pf.String("column", "", "identifier column of the input file")
	pf.String("checkpoint", "", "checkpoint file")
	pf.String("cache-dir", "", "record cache directory")
	pf.Int("rate-limit-ms", 0, "minimum delay between gateway calls in milliseconds")
	pf.Bool("headless", true, "run the browser headless")

	bindFlags(pf.Lookup, map[string]string{
		"log.level":             "log-level",
		"input.path":            "input",
		"input.column":          "column",
		"checkpoint.path":       "checkpoint",
		"cache.dir":             "cache-dir",
		"gateway.rate_limit_ms": "rate-limit-ms",
		"gateway.headless":      "headless",
	})

	rootCmd.AddCommand(runCmd, fetchCmd, mergeCmd, reportCmd, statusCmd, syncDBCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			_ = logger.Close()
		}
		os.Exit(1)
	}
}

// runPipeline processes ids with the browser gateway, appending rows to the
// configured output file.
func runPipeline(ctx context.Context, cache *storage.FileCache, ids []string) (*pipeline.Summary, error) {
	writer, err := storage.NewCSVWriter(cfg.Output.Path, models.OutputColumns())
	if err != nil {
		return nil, &pipeline.PersistenceError{Op: "open output", Err: err}
	}
	defer writer.Close()

	scraper := aarp.New(cfg.Gateway, logger)
	defer scraper.Close()

	orch := pipeline.New(scraper, cache, storage.NewJSONCheckpointStore(cfg.Checkpoint.Path),
		writer, cfg.Gateway.RateLimit(), logger)
	return orch.Run(ctx, ids, cfg.Batch.Size)
}

func openCache(ctx context.Context) (*storage.FileCache, error) {
	cache, err := storage.OpenFileCache(ctx, cfg.Cache.Dir, cfg.Cache.KeepRaw, logger)
	if err != nil {
		return nil, &pipeline.PersistenceError{Op: "open cache", Err: err}
	}
	return cache, nil
}
