package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mp-manager/mp-manager/internal/executioncontext"
	"github.com/mp-manager/mp-manager/internal/httpclient"
	"github.com/mp-manager/mp-manager/internal/metrics"
	"github.com/mp-manager/mp-manager/internal/otel"
	"github.com/mp-manager/mp-manager/internal/pipeline"
	"github.com/mp-manager/mp-manager/internal/sources"
	"github.com/spf13/cobra"
)

func newUpdateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Refetch every source and rebuild the protein tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, a.Close())
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if a.config.IsOTELEnabled() {
				otelShutdown, err := otel.SetupOTEL(ctx, a.config.OTEL, Version, a.logger)
				if err != nil {
					return fmt.Errorf("Failed to setup OTEL: %w", err)
				}
				defer func() {
					if otelShutdown == nil {
						return
					}
					// the run context may already be cancelled
					if err := otelShutdown(context.Background()); err != nil {
						a.logger.Error("Failed to shutdown OTEL", "error", err.Error())
					}
				}()
			}

			var m *metrics.Metrics
			if a.config.IsPrometheusEnabled() {
				m = metrics.New()
			}

			client, err := httpclient.NewClient(a.config, a.logger, m)
			if err != nil {
				return err
			}
			src := sources.New(client, a.config.Sources, a.logger)

			ec := executioncontext.NewExecutionContext(ctx, a.logger)
			runErr := pipeline.New(a.config, a.store, src, m).Run(ec)

			if m != nil && a.config.Prometheus.Textfile != "" {
				if err := m.WriteTextfile(a.config.Prometheus.Textfile); err != nil {
					a.logger.Error("Failed to write metrics", "file", a.config.Prometheus.Textfile, "error", err.Error())
				}
			}
			if runErr != nil {
				return runErr
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Update finished.")
			return err
		},
	}
}
