package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/quire/internal/presentation/tui"
	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/runner"
	"github.com/muesli/termenv"
)

// RunOptions contains the configuration for an interactive run.
type RunOptions struct {
	AssessmentID string
	SessionID    string
	// Fresh discards any stored progress for SessionID first.
	Fresh bool
	// Headless speaks JSON lines instead of the text prompt.
	Headless bool
	// Policy bounds answers. RunSession fills it from the App when unset.
	Policy runner.AnswerPolicy

	Input  io.Reader
	Output io.Writer

	// Handler overrides the handler built by NewHandler.
	Handler runner.IOHandler
	// InterruptSource interrupts the run like Ctrl+C does.
	InterruptSource <-chan struct{}
}

func (o RunOptions) streams() (io.Reader, io.Writer) {
	in, out := o.Input, o.Output
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return in, out
}

// quiet reports whether system messages must stay off the output stream.
func (o RunOptions) quiet() bool {
	return o.Headless
}

// NewHandler builds the IO handler for a run: JSON lines when headless,
// otherwise a text prompt styled for the output's color profile.
func NewHandler(opts RunOptions) runner.IOHandler {
	in, out := opts.streams()
	if opts.Headless {
		return runner.NewJSONHandler(in, out)
	}

	profile := termenv.NewOutput(out).Profile
	handlerOpts := []runner.TextHandlerOption{
		runner.WithTextHandlerTitleStyle(tui.TitleStyle(profile)),
		runner.WithTextHandlerPolicy(opts.Policy),
	}

	render, err := tui.NewPlainRenderer()
	if profile != termenv.Ascii {
		render, err = tui.NewRenderer(0)
	}
	if err == nil {
		handlerOpts = append(handlerOpts, runner.WithTextHandlerRenderer(render))
	}
	return runner.NewTextHandler(in, out, handlerOpts...)
}

// RunSession attaches to (or starts) a session and drives it until it
// terminates, the respondent quits, or the input ends.
func RunSession(ctx context.Context, app *App, opts RunOptions) error {
	_, out := opts.streams()
	logger := app.Logger.With("assessment_id", opts.AssessmentID)

	if opts.Fresh && opts.SessionID != "" {
		if err := app.Engine.Delete(ctx, opts.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to reset session: %w", err)
		}
		logger.Info("Session reset", "session_id", opts.SessionID)
	}

	s, existed, err := runner.NewSessionManager(app.Engine).LoadOrStart(ctx, opts.AssessmentID, opts.SessionID)
	if err != nil {
		return err
	}
	logger = logger.With("session_id", s.ID())

	view := s.View()
	if existed {
		logger.Info("Session resumed", "node_id", view.Identifier)
		if !opts.quiet() {
			printSystemMessage(out, "Resuming session '%s' at '%s'.", s.ID(), view.Identifier)
		}
	} else {
		logger.Info("Session created")
		if !opts.quiet() {
			printSystemMessage(out, "Session '%s' active.", s.ID())
		}
	}

	if opts.Policy == (runner.AnswerPolicy{}) {
		opts.Policy = app.Policy
	}
	handler := opts.Handler
	if handler == nil {
		handler = NewHandler(opts)
	}
	r := runner.NewRunner(
		runner.WithLogger(logger),
		runner.WithInputHandler(handler),
		runner.WithInterruptSource(opts.InterruptSource),
		runner.WithAnswerPolicy(opts.Policy),
	)

	runErr := r.Run(ctx, s)
	logCompletion(out, s.View(), runErr, opts.quiet())
	if runErr != nil && !errors.Is(runErr, runner.ErrInterrupted) {
		logger.Error("Run failed", "err", runErr)
	}
	return runErr
}

func logCompletion(w io.Writer, view domain.StepView, err error, quiet bool) {
	if quiet {
		return
	}
	switch {
	case err == nil && view.Terminal:
		printSystemMessage(w, "Finished with status '%s'.", view.Status)
	case isInterrupted(err):
		printSystemMessage(w, "Interrupted at '%s'.", view.Identifier)
	}
}
