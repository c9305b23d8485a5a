package main

import (
	"context"

	"github.com/spf13/cobra"

	"livability-pipeline/storage"
)

var syncDBCmd = &cobra.Command{
	Use:   "sync-db",
	Short: "Mirror the record cache into PostgreSQL",
	Long: `Upserts the most recent cached record of every identifier into the
livability_records table. Rows are only replaced by records retrieved at the
same time or later. Connection settings come from POSTGRES_* variables.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cache, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer cache.Close()

		pgWriter, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Check the POSTGRES_* settings and that the server is reachable")
			return err
		}
		defer pgWriter.Close()

		n, err := syncRecords(ctx, cache, pgWriter)
		if err != nil {
			return err
		}
		logger.Info("Synced %d records to PostgreSQL (table: livability_records)", n)
		return nil
	},
}

// syncRecords writes the latest cached entry of every identifier to w.
func syncRecords(ctx context.Context, cache *storage.FileCache, w storage.RecordWriter) (int, error) {
	entries, err := cache.Entries(ctx)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		logger.Warn("Cache is empty; nothing to sync")
		return 0, nil
	}
	if err := w.Write(entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}
