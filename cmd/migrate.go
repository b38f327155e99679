package cmd

import (
	"billnotify/internal/config"
	"billnotify/internal/infra/pgstore"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := pgstore.Connect(cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer pgstore.Close(db)
			if err := pgstore.AutoMigrate(db); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	}
}
