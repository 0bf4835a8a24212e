package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/quire/internal/config"
	"github.com/aretw0/quire/internal/logging"
	"github.com/aretw0/quire/pkg/runner"
)

// newLogger configures the application logger from the log section.
// Output goes to Stderr to keep it apart from the respondent-facing flow.
func newLogger(cfg *config.Config) *slog.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.NewWithWriter(os.Stderr, level, cfg.Log.JSON)
}

// NewLogger exposes the configured logger to commands that do not build an engine.
func NewLogger(cfg *config.Config) *slog.Logger {
	return newLogger(cfg)
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// isInterrupted reports whether err only means the run was stopped early.
func isInterrupted(err error) bool {
	return errors.Is(err, runner.ErrInterrupted) ||
		errors.Is(err, context.Canceled)
}
