package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"livability-pipeline/models"
	"livability-pipeline/services"
	"livability-pipeline/storage"
	"livability-pipeline/utils"
)

var mergeFetchMissing bool

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge cached records onto the base dataset",
	Long: `Joins the most recent cached record of every join key onto the base
dataset (.csv or .xlsx) and writes the result. Matched rows get their
livability columns overwritten; other rows keep their values.

With --fetch-missing, keys without a cached record are processed first.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cache, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer cache.Close()

		if mergeFetchMissing {
			base, err := storage.ReadTable(cfg.Merge.BasePath)
			if err != nil {
				return err
			}
			missing, err := missingKeys(ctx, cache, base, cfg.Merge.JoinColumn)
			if err != nil {
				return err
			}
			logger.Info("%d join keys have no cached record", len(missing))
			if len(missing) > 0 {
				summary, err := runPipeline(ctx, cache, missing)
				if err := reportRun(summary, err); err != nil {
					return err
				}
			}
		}

		_, err = mergeFiles(context.WithoutCancel(ctx), cache, cfg.Merge.BasePath,
			cfg.Merge.JoinColumn, cfg.Merge.MergeOutput(), logger)
		return err
	},
}

func init() {
	f := mergeCmd.Flags()
	f.BoolVar(&mergeFetchMissing, "fetch-missing", false, "process join keys without a cached record first")
	f.String("base", "", "base dataset to merge onto")
	f.String("merge-output", "", "where to write the merged dataset (default: overwrite base)")
	f.String("join-column", "", "base dataset column holding the join key")
	bindFlags(f.Lookup, map[string]string{
		"merge.base_path":   "base",
		"merge.output_path": "merge-output",
		"merge.join_column": "join-column",
	})
}

// missingKeys returns the join keys of base that have no cached record.
func missingKeys(ctx context.Context, cache *storage.FileCache, base *models.Table, joinColumn string) ([]string, error) {
	keys, err := services.JoinKeys(base, joinColumn)
	if err != nil {
		return nil, err
	}
	have, err := cache.Lookup(ctx, keys)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, k := range keys {
		if _, ok := have[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing, nil
}

// mergeFiles merges the cache onto the dataset at basePath and writes the
// result to outPath.
func mergeFiles(ctx context.Context, cache *storage.FileCache, basePath, joinColumn, outPath string, logger *utils.Logger) (*services.MergeStats, error) {
	base, err := storage.ReadTable(basePath)
	if err != nil {
		return nil, err
	}
	keys, err := services.JoinKeys(base, joinColumn)
	if err != nil {
		return nil, err
	}
	records, err := cache.Lookup(ctx, keys)
	if err != nil {
		return nil, err
	}

	merged, stats, err := services.NewMerger(logger).Merge(base, joinColumn, records)
	if err != nil {
		return nil, err
	}
	if err := storage.WriteTable(outPath, merged); err != nil {
		return nil, err
	}
	logger.Info("Merged dataset written to %s", outPath)
	return stats, nil
}
