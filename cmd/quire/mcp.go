package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/quire/internal/cli"
	"github.com/aretw0/quire/pkg/adapters/mcp"
	"github.com/aretw0/quire/pkg/runner"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the engine as an MCP server, so AI agents can list assessments,
start sessions, answer steps and read results as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Run: func(cmd *cobra.Command, args []string) {
		transport, _ := cmd.Flags().GetString("transport")

		// Logs go to Stderr, so they never corrupt JSON-RPC on Stdout.
		app := mustEngine(context.Background(), cli.EngineOptions{
			Interceptors: []runner.ActionInterceptor{runner.AutoApproveMiddleware()},
		})
		defer app.Close()

		srv := mcp.NewServer(app.Engine, mcp.WithLogger(app.Logger), mcp.WithAnswerPolicy(app.Policy))

		switch transport {
		case "stdio":
			app.Logger.Info("Starting quire MCP server (stdio)")
			if err := srv.ServeStdio(); err != nil {
				app.Logger.Error("MCP server execution failed", "err", err)
				_ = app.Close()
				os.Exit(1)
			}
		case "sse":
			port := cfg.Server.MCPPort
			app.Logger.Info("Starting quire MCP server (SSE)", "port", port)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.Logger.Error("MCP server execution failed", "err", err)
				_ = app.Close()
				os.Exit(1)
			}
			app.Logger.Info("MCP server stopped gracefully")
		default:
			fmt.Printf("Unknown transport: %s. Supported: stdio, sse\n", transport)
			_ = app.Close()
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringP("transport", "t", "stdio", "Transport to use (stdio, sse)")
	mcpCmd.Flags().IntP("port", "p", 8081, "Port for the SSE transport")
	bindLocal(mcpCmd, "server.mcp_port", "port")
}
