package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the background consolidation and intention loops until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := buildEngine(ctx, cfgPath)
		if err != nil {
			return err
		}
		defer e.close(context.Background())

		log.Info().
			Bool("consolidation_enabled", !e.cfg.Consolidation.Disabled).
			Bool("intentions_enabled", !e.cfg.Intentions.Disabled).
			Msg("rookd serving")

		if err := e.runtime.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		log.Info().Msg("rookd stopped")
		return nil
	},
}
