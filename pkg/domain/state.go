package domain

import (
	"slices"
	"time"
)

// ExecutionStatus defines the lifecycle mode of a run.
type ExecutionStatus string

const (
	StatusActive    ExecutionStatus = "active"    // Navigating
	StatusPaused    ExecutionStatus = "paused"    // Waiting for the respondent to come back
	StatusCompleted ExecutionStatus = "completed" // Root scope exhausted
	StatusCancelled ExecutionStatus = "cancelled" // Respondent cancelled
	StatusExited    ExecutionStatus = "exited"    // Backed out of the first step
)

// Terminal reports whether no further navigation is possible.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExited
}

// State is the persisted snapshot of one run.
type State struct {
	SessionID    string          `json:"session_id"`
	AssessmentID string          `json:"assessment_id"`
	Status       ExecutionStatus `json:"status"`

	// CurrentPath is the identifier path of the current node, empty once terminated.
	// It is informative only; resume derives the position from Result.
	CurrentPath []string `json:"current_path,omitempty"`

	Result *AssessmentResult `json:"result"`

	UpdatedAt time.Time `json:"updated_at"`

	// Sealed carries the encrypted snapshot written by an encrypting store.
	// When set, Result is a placeholder without history.
	Sealed string `json:"sealed,omitempty"`
}

// NewState creates a snapshot wrapper for a fresh result.
func NewState(sessionID, assessmentID string, result *AssessmentResult) *State {
	return &State{
		SessionID:    sessionID,
		AssessmentID: assessmentID,
		Status:       StatusActive,
		Result:       result,
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.CurrentPath = slices.Clone(s.CurrentPath)
	out.Result = s.Result.Copy()
	return &out
}

// Terminated reports whether the run has ended.
func (s *State) Terminated() bool {
	return s.Status.Terminal() || (s.Result != nil && s.Result.Terminated())
}
