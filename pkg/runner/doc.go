/*
Package runner implements the interactive loop that drives a session from a terminal or a pipe.

It acts as the bridge between a session and the outside world. The runner
presents each step through a pluggable IOHandler, turns input lines into
answers and button actions, and pauses the run on Ctrl+C when the step allows it.

# Key Components

  - Runner: The loop. It returns on completion, quit, EOF or interrupt.
  - TextHandler: Human-friendly prompts with numbered choices and ":command" actions.
  - JSONHandler: JSON-lines for headless hosts: StepView out, Command in.
  - Guard: Interceptor middleware in front of custom action handlers.
  - SessionManager: Starts, reattaches to or resumes a durable session.

# Usage

	s, _, err := runner.NewSessionManager(engine).LoadOrStart(ctx, "intake", "user-1")
	if err != nil {
		log.Fatal(err)
	}
	if err := runner.NewRunner(runner.WithRenderer(render)).Run(ctx, s); err != nil {
		log.Fatal(err)
	}
*/
package runner
