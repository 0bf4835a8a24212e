package schema

import (
	"errors"
	"fmt"

	"github.com/aretw0/quire/pkg/domain"
)

// ValidationError represents a single answer validation failure.
type ValidationError struct {
	Key    string // Step identifier or element position
	Reason string // Human-readable reason for failure
	Value  *domain.Value
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("answer %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("answer %q: %s (got %s)", e.Key, e.Reason, e.Value.Kind())
}

func (e *ValidationError) Unwrap() error { return domain.ErrInvalidAnswer }

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// ValidationErrors returns all validation errors if err is an AggregateError.
// Otherwise returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}
