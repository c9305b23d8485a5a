package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"livability-pipeline/models"
	"livability-pipeline/pipeline"
	"livability-pipeline/scraper/aarp"
	"livability-pipeline/storage"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <identifier>",
	Short: "Fetch, parse and cache the report of one identifier",
	Long: `Looks up a single zip code or address, stores the parsed record in the
cache and prints it as JSON. The checkpoint is not touched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		id := models.NormalizeID(args[0])
		if id == "" {
			return &pipeline.InputError{Source: "argument", Err: eris.New("empty identifier")}
		}

		cache, err := openCache(ctx)
		if err != nil {
			return err
		}
		defer cache.Close()

		scraper := aarp.New(cfg.Gateway, logger)
		defer scraper.Close()

		orch := pipeline.New(scraper, cache, storage.NewJSONCheckpointStore(cfg.Checkpoint.Path),
			nil, cfg.Gateway.RateLimit(), logger)
		rec, err := orch.Fetch(ctx, id)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return eris.Wrap(err, "fetch: encode record")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}
