package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/aretw0/quire/internal/cli"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persistent sessions",
	Long:  `List, inspect, and remove sessions in the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored sessions",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		app := mustEngine(ctx, cli.EngineOptions{})
		defer app.Close()

		sessions, err := app.Engine.Sessions(ctx)
		if err != nil {
			fmt.Printf("Error listing sessions: %v\n", err)
			_ = app.Close()
			os.Exit(1)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tASSESSMENT\tSTATUS\tUPDATED")
		for _, id := range sessions {
			st, err := app.Engine.Snapshot(ctx, id)
			if err != nil {
				fmt.Fprintf(w, "%s\t?\t%v\t\n", id, err)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, st.AssessmentID, st.Status, st.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		_ = w.Flush()
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the stored state and result of a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		app := mustEngine(ctx, cli.EngineOptions{})
		defer app.Close()

		state, err := app.Engine.Snapshot(ctx, args[0])
		if err != nil {
			fmt.Printf("Error loading session '%s': %v\n", args[0], err)
			_ = app.Close()
			os.Exit(1)
		}

		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			fmt.Printf("Error marshaling state: %v\n", err)
			_ = app.Close()
			os.Exit(1)
		}
		fmt.Println(string(data))
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		app := mustEngine(ctx, cli.EngineOptions{})
		defer app.Close()

		hasError := false
		for _, id := range args {
			if err := app.Engine.Delete(ctx, id); err != nil {
				fmt.Printf("Error removing '%s': %v\n", id, err)
				hasError = true
				continue
			}
			fmt.Printf("Removed session '%s'\n", id)
		}
		if hasError {
			_ = app.Close()
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd, sessionInspectCmd, sessionRmCmd)
}
