package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrAssessmentNotFound is returned when a definition loader has no assessment for an ID.
var ErrAssessmentNotFound = errors.New("assessment not found")

// ErrUnhandledAction is returned when a custom button action has no handler.
var ErrUnhandledAction = errors.New("unhandled action")

var (
	// ErrTerminated is returned when navigating a run that already ended.
	ErrTerminated = errors.New("run terminated")
	// ErrPaused is returned when navigating a paused run.
	ErrPaused = errors.New("run paused")
	// ErrPauseDisabled is returned when the current node does not allow pausing.
	ErrPauseDisabled = errors.New("pause disabled on current step")
	// ErrAnswerRequired is returned when moving forward from a required question without an answer.
	ErrAnswerRequired = errors.New("answer required")
	// ErrInvalidAnswer is returned when a value does not fit the question's input.
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrNoInput is returned when answering a step that does not collect input.
	ErrNoInput = errors.New("step does not accept input")
	// ErrNoInstructions is returned by reviewInstructions when no instruction step was visited.
	ErrNoInstructions = errors.New("no instructions to review")
)

// Sentinels wrapped by the typed navigation errors.
var (
	ErrUnknownIdentifier = errors.New("unknown identifier")
	ErrInvalidTarget     = errors.New("invalid target")
	ErrExhausted         = errors.New("navigation history exhausted")
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)

// GraphErrorCode classifies graph lookup failures.
type GraphErrorCode string

const CodeUnknownIdentifier GraphErrorCode = "unknownIdentifier"

// GraphError reports an identifier absent from the graph.
type GraphError struct {
	Code       GraphErrorCode
	Identifier string
	// Scope is the slash-joined path searched, empty for the root.
	Scope string
}

func (e *GraphError) Error() string {
	if e.Scope == "" {
		return fmt.Sprintf("graph: %s %q", e.Code, e.Identifier)
	}
	return fmt.Sprintf("graph: %s %q in %s", e.Code, e.Identifier, e.Scope)
}

func (e *GraphError) Unwrap() error { return ErrUnknownIdentifier }

// NavigatorErrorCode classifies navigation failures.
type NavigatorErrorCode string

const (
	CodeInvalidTarget NavigatorErrorCode = "invalidTarget"
	CodeExhausted     NavigatorErrorCode = "exhausted"
)

// NavigatorError reports a rule target or move the navigator refused.
type NavigatorError struct {
	Code       NavigatorErrorCode
	Identifier string
	From       string
	Reason     string
}

func (e *NavigatorError) Error() string {
	var sb strings.Builder
	sb.WriteString("navigator: ")
	sb.WriteString(string(e.Code))
	if e.Identifier != "" {
		fmt.Fprintf(&sb, " %q", e.Identifier)
	}
	if e.From != "" {
		fmt.Fprintf(&sb, " from %q", e.From)
	}
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	return sb.String()
}

func (e *NavigatorError) Unwrap() error {
	if e.Code == CodeExhausted {
		return ErrExhausted
	}
	return ErrInvalidTarget
}

// SnapshotError reports a snapshot that cannot be restored.
type SnapshotError struct {
	SessionID string
	Reason    string
	Err       error
}

func (e *SnapshotError) Error() string {
	msg := "snapshot"
	if e.SessionID != "" {
		msg += " " + e.SessionID
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the cause.
func (e *SnapshotError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedSnapshot}
	}
	return []error{ErrMalformedSnapshot, e.Err}
}
