package main

import (
	"github.com/spf13/cobra"

	"github.com/gramseva/mgnrega-tracker/internal/datagov"
	"github.com/gramseva/mgnrega-tracker/internal/ingest"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run a one-shot data refresh",
	Long:  "Fetches district metadata and performance history from the data.gov.in API (or cache/fallback) and upserts it into the store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		source := datagov.NewClient(cfg.DataGov, cfg.Ingest)
		return ingest.New(st, source, cfg.Ingest).RefreshAll(ctx)
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
