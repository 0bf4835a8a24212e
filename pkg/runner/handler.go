package runner

import (
	"context"
	"errors"

	"github.com/aretw0/quire/pkg/domain"
)

// ErrInvalidCommand is returned by Input when a line cannot be turned into a
// Command. The runner reports it and asks again.
var ErrInvalidCommand = errors.New("invalid command")

// Command is one user intent read by an IOHandler: record (or clear) an
// answer, trigger a button action, or both. Answers are applied first.
type Command struct {
	Action domain.ButtonAction `json:"action,omitempty"`
	Answer *domain.Value       `json:"answer,omitempty"`
	// Clear removes the current answer instead of setting one.
	Clear bool `json:"clear,omitempty"`
	// Quit stops the runner, leaving the session as persisted.
	Quit bool `json:"quit,omitempty"`
}

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents the current step to the user.
	// Returns true if the handler expects to read input after this.
	Output(ctx context.Context, view domain.StepView) (bool, error)

	// Input reads the next command for the last presented step.
	Input(ctx context.Context) (Command, error)

	// Confirm asks a yes/no question outside the step flow.
	Confirm(ctx context.Context, prompt string) (bool, error)

	// SystemOutput presents a meta-message to the user (e.g. system logs, status updates).
	// This is distinct from content rendering.
	SystemOutput(ctx context.Context, msg string) error
}

// Session is the navigation surface a Runner drives. *session.Session satisfies it.
type Session interface {
	ID() string
	View() domain.StepView
	SetAnswer(ctx context.Context, v domain.Value) error
	ClearAnswer(ctx context.Context) error
	Perform(ctx context.Context, action domain.ButtonAction) (domain.StepView, error)
	Pause(ctx context.Context) error
}
