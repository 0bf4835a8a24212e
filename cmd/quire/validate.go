package main

import (
	"fmt"
	"os"

	"github.com/aretw0/quire/internal/cli"
	stepgraph "github.com/aretw0/quire/pkg/graph"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [assessment...]",
	Short: "Check assessment definitions for consistency",
	Long: `Loads every assessment (or the ones named) and reports definition errors,
unresolvable rule targets and other issues. Exits non-zero when any error is found.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		app := mustEngine(ctx, cli.EngineOptions{})
		defer app.Close()

		ids := args
		if len(ids) == 0 {
			var err error
			if ids, err = app.Engine.Assessments(ctx); err != nil {
				fmt.Printf("Error listing assessments: %v\n", err)
				_ = app.Close()
				os.Exit(1)
			}
		}
		if len(ids) == 0 {
			fmt.Printf("No assessments found in %s\n", cfg.Definitions.Dir)
			return
		}

		failed := 0
		for _, id := range ids {
			g, err := app.Engine.Graph(ctx, id)
			if err != nil {
				fmt.Printf("✗ %s: %v\n", id, err)
				failed++
				continue
			}
			issues := g.Validate()
			if len(stepgraph.Errors(issues)) > 0 {
				failed++
				fmt.Printf("✗ %s\n", id)
			} else {
				fmt.Printf("✓ %s\n", id)
			}
			for _, issue := range issues {
				fmt.Printf("    %s\n", issue)
			}
		}

		if failed > 0 {
			fmt.Printf("Validation failed: %d of %d assessments have errors\n", failed, len(ids))
			_ = app.Close()
			os.Exit(1)
		}
		fmt.Println("All assessments are valid!")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
