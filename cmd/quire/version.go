package main

import (
	"fmt"

	"github.com/aretw0/quire"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of quire",
	// No configuration is needed to print the version.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("quire version %s\n", quire.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
