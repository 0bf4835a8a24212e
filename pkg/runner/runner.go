package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/quire/internal/logging"
	"github.com/aretw0/quire/pkg/domain"
)

// ErrInterrupted is returned when the run was interrupted on a step that
// cannot be paused. Whatever was persisted before the interrupt stays.
var ErrInterrupted = errors.New("interrupted")

// Runner drives a session through an IOHandler until the run terminates,
// the user quits, or the input ends.
// It uses an IOHandler strategy to abstract the interaction mode (Text vs JSON).
type Runner struct {
	// Handler is the strategy for IO. If nil, one is built from Input/Output.
	Handler IOHandler

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer

	// InterruptSource, when set, interrupts the run like Ctrl+C does.
	InterruptSource <-chan struct{}

	// Policy cleans answers before they reach the session.
	Policy AnswerPolicy
}

// NewRunner creates a new Runner with default Stdin/Stdout.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Input:  os.Stdin,
		Output: os.Stdout,
		Logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run presents steps and applies commands until the session reaches a
// terminal state. Every transition is persisted by the session itself, so
// returning early (quit, EOF, interrupt) never loses progress. An interrupt
// pauses the run when the current step allows it.
func (r *Runner) Run(ctx context.Context, s Session) error {
	handler := r.resolveHandler()
	logger := r.Logger.With("session_id", s.ID())

	signals := NewSignalManager()
	defer signals.Stop()

	if r.InterruptSource != nil {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-r.InterruptSource:
				signals.Interrupt()
			case <-done:
			}
		}()
	}

	view := s.View()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		needsInput, err := handler.Output(ctx, view)
		if err != nil {
			return fmt.Errorf("output error: %w", err)
		}
		if view.Terminal || !needsInput {
			logger.Debug("run finished", "status", view.Status)
			return nil
		}

		cmd, err := r.read(ctx, handler, signals)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			signals.CheckRace()
			if signals.Context().Err() != nil {
				return r.interrupt(ctx, s, handler, view)
			}
			if errors.Is(err, io.EOF) {
				logger.Debug("input closed")
				return nil
			}
			if errors.Is(err, ErrInvalidCommand) {
				if err := handler.SystemOutput(ctx, err.Error()); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("input error: %w", err)
		}

		if cmd.Quit {
			return handler.SystemOutput(ctx, fmt.Sprintf("Session %s saved.", s.ID()))
		}

		next, err := r.apply(ctx, s, view, cmd)
		if err != nil {
			if !isRecoverable(err) {
				return err
			}
			logger.Debug("command rejected", "action", cmd.Action, "err", err)
			if err := handler.SystemOutput(ctx, err.Error()); err != nil {
				return err
			}
			view = s.View()
			continue
		}

		if cmd.Action == domain.ActionPause {
			return handler.SystemOutput(ctx, fmt.Sprintf("Session %s paused.", s.ID()))
		}
		view = next
	}
}

// read waits for a command, giving up when either the caller's context or
// the signal context is cancelled.
func (r *Runner) read(ctx context.Context, handler IOHandler, signals *SignalManager) (Command, error) {
	inputCtx, cancel := context.WithCancel(signals.Context())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return handler.Input(inputCtx)
}

func (r *Runner) interrupt(ctx context.Context, s Session, handler IOHandler, view domain.StepView) error {
	if !view.CanPause {
		r.Logger.Debug("interrupted on a step that cannot pause", "session_id", s.ID(), "path", view.Path)
		return ErrInterrupted
	}
	if err := s.Pause(ctx); err != nil {
		return fmt.Errorf("failed to pause after interrupt: %w", err)
	}
	return handler.SystemOutput(ctx, fmt.Sprintf("Interrupted. Session %s paused.", s.ID()))
}

func (r *Runner) apply(ctx context.Context, s Session, view domain.StepView, cmd Command) (domain.StepView, error) {
	switch {
	case cmd.Clear:
		if err := s.ClearAnswer(ctx); err != nil {
			return s.View(), err
		}
	case cmd.Answer != nil:
		answer, err := r.Policy.Clean(view.Input, *cmd.Answer)
		if err != nil {
			return s.View(), err
		}
		if err := s.SetAnswer(ctx, answer); err != nil {
			return s.View(), err
		}
	}
	if cmd.Action == "" {
		return s.View(), nil
	}
	return s.Perform(ctx, cmd.Action)
}

// isRecoverable reports whether the user can fix err by trying again.
func isRecoverable(err error) bool {
	for _, target := range []error{
		domain.ErrAnswerRequired,
		domain.ErrInvalidAnswer,
		domain.ErrNoInput,
		domain.ErrUnhandledAction,
		domain.ErrPauseDisabled,
		domain.ErrNoInstructions,
		domain.ErrExhausted,
		ErrActionDenied,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// resolveHandler ensures a valid IOHandler is set.
func (r *Runner) resolveHandler() IOHandler {
	if r.Handler != nil {
		return r.Handler
	}
	if r.Headless {
		r.Handler = NewJSONHandler(r.Input, r.Output)
	} else {
		r.Handler = NewTextHandler(r.Input, r.Output, WithTextHandlerRenderer(r.Renderer), WithTextHandlerPolicy(r.Policy))
	}
	// Memoize to prevent creating new Pumps on subsequent Run() calls
	return r.Handler
}
