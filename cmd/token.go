package cmd

import (
	"billnotify/internal/api"
	"billnotify/internal/config"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	var command = &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.Admin.JWTSecret == "" {
				return errors.New("Admin_JWTSecret is not set")
			}
			tok, err := api.NewTokenAuth(cfg.Admin.JWTSecret).Sign(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	command.Flags().StringVar(&subject, "subject", "operator", "Token subject")
	command.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return command
}
