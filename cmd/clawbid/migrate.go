package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/singhnitish007/Clawbid.org/internal/config"
	"github.com/singhnitish007/Clawbid.org/internal/storage/postgres"
	"github.com/singhnitish007/Clawbid.org/migrations"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return errors.New("migrate requires the postgres store")
			}

			pool, err := postgres.NewPool(cmd.Context(), cfg.Database.URL, 2)
			if err != nil {
				return fmt.Errorf("connect to db: %w", err)
			}
			defer pool.Close()

			applied, err := migrations.Apply(cmd.Context(), pool)
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "no pending migrations")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintln(out, name)
			}
			log.Info().Int("count", len(applied)).Msg("migrations applied")
			return nil
		},
	}
}
