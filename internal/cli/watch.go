package cli

import (
	"context"
	"errors"

	"github.com/aretw0/quire"
	"github.com/aretw0/quire/pkg/domain"
	"github.com/google/uuid"
)

// RunWatch runs a session like RunSession and restarts it whenever the
// definitions change. A reload interrupts the current prompt, which pauses
// the run where the step allows it; the next iteration picks the session up
// from the store. Loaders that cannot be watched fall back to a single run.
func RunWatch(ctx context.Context, app *App, opts RunOptions) error {
	events, err := app.Engine.Watch(ctx)
	if errors.Is(err, quire.ErrNotWatchable) {
		app.Logger.Warn("Definitions cannot be watched, running once")
		return RunSession(ctx, app, opts)
	}
	if err != nil {
		return err
	}

	_, out := opts.streams()
	if opts.SessionID == "" {
		// Every iteration must reattach to the same run.
		opts.SessionID = uuid.NewString()
	}
	if opts.Handler == nil {
		// One handler for every iteration, so only one reader drains the input.
		opts.Handler = NewHandler(opts)
	}

	for {
		reload := make(chan struct{}, 1)
		iteration := opts
		iteration.InterruptSource = reload

		done := make(chan error, 1)
		go func() {
			done <- RunSession(ctx, app, iteration)
		}()
		opts.Fresh = false

		select {
		case <-ctx.Done():
			<-done
			return nil
		case _, ok := <-events:
			if !ok {
				return <-done
			}
			app.Logger.Info("Change detected, triggering reload")
			printSystemMessage(out, "Definitions changed, reloading.")
			reload <- struct{}{}
			<-done
			continue
		case err := <-done:
			if isInterrupted(err) || userPaused(ctx, app, opts.SessionID) {
				return nil
			}
			if err != nil {
				printSystemMessage(out, "Error: %v", err)
			}
		}

		if ctx.Err() != nil {
			return nil
		}
		printSystemMessage(out, "Waiting for changes...")
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-events:
			if !ok {
				return nil
			}
			app.Logger.Info("Change detected, restarting")
		}
	}
}

// userPaused reports whether the respondent paused the run (Ctrl+C or the
// pause command), which ends watching as well.
func userPaused(ctx context.Context, app *App, sessionID string) bool {
	v, err := app.Engine.View(ctx, sessionID)
	return err == nil && v.Status == domain.StatusPaused
}
