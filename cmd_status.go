package main

import (
	"os"

	"github.com/spf13/cobra"

	"livability-pipeline/pipeline"
	"livability-pipeline/services"
	"livability-pipeline/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint progress against the input file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ids, err := storage.LoadIdentifiers(cfg.Input.Path, cfg.Input.Column)
		if err != nil {
			return &pipeline.InputError{Source: cfg.Input.Path, Err: err}
		}
		state, err := storage.NewJSONCheckpointStore(cfg.Checkpoint.Path).Load()
		if err != nil {
			return &pipeline.InputError{Source: "checkpoint", Err: err}
		}

		insights := services.NewInsightService(logger)
		insights.PrintProgress(os.Stdout, insights.Progress(state, ids))
		return nil
	},
}
