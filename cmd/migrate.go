package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gramseva/mgnrega-tracker/internal/fallback"
)

var migrateSeed bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	Long:  "Creates the districts, performance_data and api_cache tables. With --seed, also loads the built-in Bihar sample dataset (provenance \"sample\").",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		zap.L().Info("schema migrated", zap.String("driver", cfg.Store.Driver))

		if !migrateSeed {
			return nil
		}

		districts := fallback.Districts()
		if err := st.UpsertDistricts(ctx, districts); err != nil {
			return eris.Wrap(err, "seed districts")
		}
		total := 0
		for _, d := range districts {
			records := fallback.Performance(d.Code)
			if len(records) == 0 {
				continue
			}
			if err := st.UpsertPerformance(ctx, records); err != nil {
				return eris.Wrapf(err, "seed performance %s", d.Code)
			}
			total += len(records)
		}
		zap.L().Info("sample data seeded",
			zap.Int("districts", len(districts)),
			zap.Int("records", total),
		)
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSeed, "seed", false, "load the built-in sample dataset after migrating")
	rootCmd.AddCommand(migrateCmd)
}
