package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/quire/internal/cli"
	"github.com/aretw0/quire/internal/config"
	"github.com/spf13/cobra"
)

var (
	settings = config.New()
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "quire",
	Short: "Quire runs questionnaires and assessments from plain definition files",
	Long: `Quire walks respondents through assessments defined in Markdown, YAML or JSON,
branching on their answers and collecting a structured result.

Configuration is read from quire.yaml (or --config) and QUIRE_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(settings, path)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Configuration file (default quire.yaml in the working directory)")
	flags.String("dir", ".", "Directory containing the assessment definitions")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("store", config.DriverFile, "Session store (memory, file, redis, sqlite)")
	flags.String("store-path", ".quire/sessions", "Session directory (file) or database file (sqlite)")

	bind("definitions.dir", "dir")
	bind("log.level", "log-level")
	bind("store.driver", "store")
	bind("store.path", "store-path")
}

// bind maps a persistent flag onto a configuration key.
func bind(key, flag string) {
	if err := settings.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// mustEngine builds the engine for commands that only read and manage sessions.
func mustEngine(ctx context.Context, opts cli.EngineOptions) *cli.App {
	app, err := cli.NewEngine(ctx, cfg, opts)
	if err != nil {
		fmt.Printf("Error initializing quire: %v\n", err)
		os.Exit(1)
	}
	return app
}

// bindLocal maps a command flag onto a configuration key.
func bindLocal(cmd *cobra.Command, key, flag string) {
	if err := settings.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(err)
	}
}
