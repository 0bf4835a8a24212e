// Package schema validates data entering the engine.
//
// Answers are checked against the question's InputField before they are
// recorded: the declared answer type, choice membership (including exclusive
// choices and "other" free text) and likert ranges.
//
//	if err := schema.ValidateAnswer(node.Input, value); err != nil {
//	    // errors.Is(err, domain.ErrInvalidAnswer)
//	}
//
// Answer types can be parsed from the compact strings used in definition files:
//
//	at, err := schema.ParseType("[string]") // array of strings
//
// Persisted snapshots are checked against an embedded JSON Schema before they
// are decoded on resume, so a corrupted document is rejected as a whole.
package schema
