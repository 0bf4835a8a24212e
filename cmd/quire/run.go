package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/quire/internal/cli"
	"github.com/aretw0/quire/internal/presentation/tui"
	"github.com/aretw0/quire/pkg/runner"
	"github.com/spf13/cobra"
)

// exitInterrupted follows the shell convention for SIGINT.
const exitInterrupted = 130

var runCmd = &cobra.Command{
	Use:   "run <assessment>",
	Short: "Take an assessment in the terminal",
	Long: `Runs an assessment interactively. Progress is saved after every step, so a
session can be left with "exit" or Ctrl+C and picked up later with the same --session.

In --headless mode steps are written as JSON lines and commands are read as JSON lines,
for example {"answer": 42} or {"action": "goBackward"}.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sessionID, _ := cmd.Flags().GetString("session")
		headless, _ := cmd.Flags().GetBool("headless")
		fresh, _ := cmd.Flags().GetBool("fresh")
		watch, _ := cmd.Flags().GetBool("watch")
		yes, _ := cmd.Flags().GetBool("yes")

		if watch && headless {
			fmt.Println("--watch and --headless cannot be used together")
			os.Exit(1)
		}

		opts := cli.RunOptions{
			AssessmentID: args[0],
			SessionID:    sessionID,
			Fresh:        fresh,
			Headless:     headless,
			Policy:       cli.AnswerPolicy(cfg),
		}
		opts.Handler = cli.NewHandler(opts)

		// Custom actions run local processes, so they need the respondent's consent.
		guard := runner.ConfirmationMiddleware(opts.Handler)
		if yes {
			guard = runner.AutoApproveMiddleware()
		}

		// The runner owns SIGINT and SIGTERM: they pause the session instead of
		// cancelling this context.
		ctx := context.Background()
		app := mustEngine(ctx, cli.EngineOptions{Interceptors: []runner.ActionInterceptor{guard}})
		defer app.Close()

		if !headless {
			tui.PrintBanner(os.Stdout)
		}

		var err error
		if watch {
			err = cli.RunWatch(ctx, app, opts)
		} else {
			err = cli.RunSession(ctx, app, opts)
		}
		switch {
		case errors.Is(err, runner.ErrInterrupted):
			_ = app.Close()
			os.Exit(exitInterrupted)
		case err != nil:
			fmt.Printf("Error: %v\n", err)
			_ = app.Close()
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("session", "s", "", "Session ID to create or resume (default: a new random ID)")
	runCmd.Flags().Bool("headless", false, "Speak JSON lines on stdin/stdout instead of the text prompt")
	runCmd.Flags().Bool("fresh", false, "Discard stored progress for --session before starting")
	runCmd.Flags().BoolP("watch", "w", false, "Restart the session when definitions change")
	runCmd.Flags().BoolP("yes", "y", false, "Run custom actions without asking for confirmation")
}
