package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sartorproj/gochangepoint/internal/httpapi"
)

func newServeCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
				if err := a.cfg.Server.Validate(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, reg, closeFn, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeFn(); err != nil {
					a.logger.Warn().Err(err).Msg("Closing data source failed")
				}
			}()

			return httpapi.NewServer(a.cfg.Server, svc, reg, a.logger).Run(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Listen port, overrides the config")
	return cmd
}
