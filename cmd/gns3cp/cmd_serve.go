package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/gns3cp/pkg/api"
	"github.com/newtron-network/gns3cp/pkg/util"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the provider operations over HTTP",
		Long: `Serve discovery, deploy, power, infrastructure and details operations
as a JSON API under /api/v1, plus /health and /metrics.

  gns3cp serve --listen 0.0.0.0:8085`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = cfg.API.Listen
			}
			p, closeFn, err := openProvider()
			if err != nil {
				return err
			}
			defer closeFn()

			server := api.New(p, listen)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()
			fmt.Printf("%s Serving on %s\n", green("✓"), listen)

			select {
			case <-ctx.Done():
				util.Logger.Info("shutdown signal received")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config api.listen)")
	return cmd
}
