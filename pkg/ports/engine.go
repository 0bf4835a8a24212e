package ports

import (
	"context"

	"github.com/aretw0/quire/pkg/domain"
)

// Engine is the surface transports (HTTP, MCP) drive. Every call addresses a
// persisted session, so implementations may serve many processes at once.
type Engine interface {
	// Assessments lists the identifiers available to Start.
	Assessments(ctx context.Context) ([]string, error)

	// Start begins a fresh run. An empty sessionID generates one.
	Start(ctx context.Context, assessmentID, sessionID string) (*domain.StepView, error)

	// View renders the current step of a session without changing it.
	View(ctx context.Context, sessionID string) (*domain.StepView, error)

	// Answer records a value for the current step.
	Answer(ctx context.Context, sessionID string, value domain.Value) (*domain.StepView, error)

	// Perform triggers a button action (goForward, skip, pause, a custom action...).
	Perform(ctx context.Context, sessionID string, action domain.ButtonAction) (*domain.StepView, error)

	// Resume restarts a paused or interrupted run and re-stamps its start date.
	Resume(ctx context.Context, sessionID string) (*domain.StepView, error)

	// Snapshot returns the persisted state, result tree included.
	Snapshot(ctx context.Context, sessionID string) (*domain.State, error)

	// Sessions lists stored session IDs.
	Sessions(ctx context.Context) ([]string, error)

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error
}
