package main

import (
	"fmt"
	"os"

	"github.com/aretw0/quire/internal/cli"
	"github.com/aretw0/quire/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <assessment>",
	Short: "Export the assessment graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the assessment's steps and branching rules.
With --session, the steps the session visited and its current step are highlighted.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		sessionID, _ := cmd.Flags().GetString("session")

		app := mustEngine(ctx, cli.EngineOptions{})
		defer app.Close()

		g, err := app.Engine.Graph(ctx, args[0])
		if err != nil {
			fmt.Printf("Error loading assessment '%s': %v\n", args[0], err)
			_ = app.Close()
			os.Exit(1)
		}

		var overlay *graph.GraphOverlay
		if sessionID != "" {
			st, err := app.Engine.Snapshot(ctx, sessionID)
			if err != nil {
				fmt.Printf("Error loading session '%s': %v\n", sessionID, err)
				_ = app.Close()
				os.Exit(1)
			}
			overlay = graph.OverlayFromState(st)
		}

		fmt.Print(graph.GenerateMermaid(g, overlay))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("session", "s", "", "Highlight the progress of this session")
}
