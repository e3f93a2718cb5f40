package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/tui"
	httpAdapter "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Serves the configured tree as a JSON API, with Prometheus metrics on /metrics.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
				addr := rt.Config.HTTP.Addr
				if cmd.Flags().Changed("addr") {
					addr, _ = cmd.Flags().GetString("addr")
				}

				srv := &http.Server{
					Addr: addr,
					Handler: httpAdapter.NewHandler(rt.Tree,
						httpAdapter.WithMetrics(rt.Metrics.Handler()),
						httpAdapter.WithLogger(rt.Logger),
					),
					ReadHeaderTimeout: 10 * time.Second,
				}

				// Channel to listen for errors coming from the listener.
				serverErrors := make(chan error, 1)
				go func() {
					tui.PrintBanner(cmd.ErrOrStderr())
					rt.Logger.Info("starting arbor server", "addr", srv.Addr, "driver", rt.Config.Store.Driver)
					serverErrors <- srv.ListenAndServe()
				}()

				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				select {
				case err := <-serverErrors:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return fmt.Errorf("server error: %w", err)

				case <-ctx.Done():
					rt.Logger.Info("shutting down", "timeout", shutdownTimeout)

					// Give outstanding requests a deadline for completion.
					shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()

					if err := srv.Shutdown(shutdownCtx); err != nil {
						rt.Logger.Warn("graceful shutdown did not complete", "err", err)
						return srv.Close()
					}
					rt.Logger.Info("arbor server stopped gracefully")
					return nil
				}
			})
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from http.addr)")
	return cmd
}
