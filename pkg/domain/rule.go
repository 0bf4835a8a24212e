package domain

import "fmt"

// ExitBranch is the skip target meaning "leave the enclosing branch".
const ExitBranch = "exit"

// RuleOperator compares a recorded answer with a rule's matching value.
type RuleOperator string

const (
	OpEqual          RuleOperator = "equal"
	OpNotEqual       RuleOperator = "notEqual"
	OpLessThan       RuleOperator = "lessThan"
	OpLessOrEqual    RuleOperator = "lessOrEqual"
	OpGreaterThan    RuleOperator = "greaterThan"
	OpGreaterOrEqual RuleOperator = "greaterOrEqual"
	// OpSkip always matches.
	OpSkip RuleOperator = "skip"
)

var operatorAliases = map[string]RuleOperator{
	"":       OpEqual,
	"eq":     OpEqual,
	"ne":     OpNotEqual,
	"lt":     OpLessThan,
	"le":     OpLessOrEqual,
	"gt":     OpGreaterThan,
	"ge":     OpGreaterOrEqual,
	"always": OpSkip,
}

// ParseRuleOperator accepts the long names and the short aliases.
func ParseRuleOperator(raw string) (RuleOperator, error) {
	if op, ok := operatorAliases[raw]; ok {
		return op, nil
	}
	switch op := RuleOperator(raw); op {
	case OpEqual, OpNotEqual, OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual, OpSkip:
		return op, nil
	}
	return "", fmt.Errorf("unknown rule operator %q", raw)
}

// SurveyRule routes the navigator when its operator matches the current answer.
type SurveyRule struct {
	// MatchingValue is nil for rules that only test presence (skip, equal null).
	MatchingValue *Value       `json:"matchingAnswer,omitempty"`
	Operator      RuleOperator `json:"ruleOperator,omitempty"`
	// SkipTo names the target node, or ExitBranch.
	SkipTo string `json:"skipToIdentifier"`
}

// EffectiveOperator defaults an empty operator to equal.
func (r SurveyRule) EffectiveOperator() RuleOperator {
	if r.Operator == "" {
		return OpEqual
	}
	return r.Operator
}

func (r SurveyRule) Clone() SurveyRule {
	if r.MatchingValue != nil {
		v := r.MatchingValue.Clone()
		r.MatchingValue = &v
	}
	return r
}
