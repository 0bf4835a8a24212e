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

	"github.com/aretw0/quire/internal/cli"
	httpAdapter "github.com/aretw0/quire/pkg/adapters/http"
	"github.com/aretw0/quire/pkg/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Exposes the engine as a JSON API over HTTP, with a server-sent event stream of
session changes and Prometheus metrics on /metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		var gatherer prometheus.Gatherer
		var registerer prometheus.Registerer
		if cfg.Server.Metrics {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			gatherer, registerer = reg, reg
		}

		// Remote clients cannot confirm custom actions interactively.
		app := mustEngine(context.Background(), cli.EngineOptions{
			Registerer:   registerer,
			Interceptors: []runner.ActionInterceptor{runner.AutoApproveMiddleware()},
		})
		defer app.Close()

		handlerOpts := []httpAdapter.Option{
			httpAdapter.WithLogger(app.Logger),
			httpAdapter.WithAnswerPolicy(app.Policy),
		}
		if gatherer != nil {
			handlerOpts = append(handlerOpts, httpAdapter.WithMetrics(gatherer))
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           httpAdapter.NewHandler(app.Engine, handlerOpts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			app.Logger.Info("Starting quire server", "addr", srv.Addr, "definitions", cfg.Definitions.Dir)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				fmt.Printf("Server error: %v\n", err)
				_ = app.Close()
				os.Exit(1)
			}

		case sig := <-shutdown:
			app.Logger.Info("Start shutdown", "signal", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				app.Logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil {
					app.Logger.Error("Error killing server", "err", err)
				}
			}
			app.Logger.Info("Quire server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
	serveCmd.Flags().Bool("metrics", true, "Expose Prometheus metrics on /metrics")
	bindLocal(serveCmd, "server.addr", "addr")
	bindLocal(serveCmd, "server.metrics", "metrics")
}
