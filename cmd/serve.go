package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kvsfs/kvsfs/internal/logger"
	"github.com/kvsfs/kvsfs/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the configured backends and block until SIGINT/SIGTERM, serving Prometheus metrics if enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, err := server.Open(ctx, Config)
		if err != nil {
			return err
		}
		defer func() {
			if err := srv.Close(context.Background()); err != nil {
				logger.Errorf("serve: close: %v", err)
			}
		}()

		if Config.Metrics.Enabled {
			go func() {
				if err := srv.Metrics.Serve(ctx, Config.Metrics.Addr); err != nil {
					logger.Errorf("serve: metrics server: %v", err)
				}
			}()
		}

		logger.Infof("serve: ready, app=%s", Config.AppName)
		<-ctx.Done()
		logger.Infof("serve: shutting down")
		return nil
	},
}
