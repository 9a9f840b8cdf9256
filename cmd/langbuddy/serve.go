package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/langbuddy/langbuddy/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup context for graceful shutdown
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := a.open(); err != nil {
				return err
			}
			srv, err := server.New(a.service(), server.Options{
				Debug:        a.cfg.Debug,
				DefaultLimit: a.cfg.WordBank.DefaultLimit,
				MaxLimit:     a.cfg.WordBank.MaxLimit,
				Logger:       a.logger,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s (database %s)\n", a.cfg.Listen, a.cfg.DBPath)
			return srv.Run(ctx, a.cfg.Listen)
		},
	}
	cmd.Flags().String("listen", ":8080", "Address to listen on")
	cmd.Flags().String("adapter-url", "", "Adaptation service endpoint (empty keeps extracted text)")
	return cmd
}
