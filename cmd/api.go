package cmd

import (
	"billnotify/internal/api"
	"billnotify/internal/config"
	"billnotify/internal/infra/pgstore"
	"billnotify/internal/infra/redisq"
	"billnotify/internal/usecase"
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func apiCmd() *cobra.Command {
	var port int
	var command = &cobra.Command{
		Use:   "api",
		Short: "Start admin API server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			cfg := config.Load()

			cli := redisq.New(cfg.Redis, cfg.Queue)
			if err := cli.Init(ctx); err != nil {
				log.Fatal().Msgf("something went wrong: %s", err)
			}
			defer cli.Close()

			db, err := pgstore.Connect(cfg.Database.DSN)
			if err != nil {
				log.Fatal().Err(err).Msg("database unavailable")
			}
			defer pgstore.Close(db)

			log.Info().Msgf("API server using queue: %s, group: %s", cfg.Queue.Name, cfg.Redis.Group)
			server := api.NewServer(usecase.NewAdmin(cli, pgstore.New(db)), cfg.Admin)
			server.Run(port)
		},
	}

	command.Flags().IntVarP(&port, "port", "p", 8080, "Port to run the server on")
	return command
}
