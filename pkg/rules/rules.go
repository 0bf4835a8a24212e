// Package rules evaluates survey rules against a recorded answer.
package rules

import (
	"github.com/aretw0/quire/pkg/domain"
)

// DirectiveKind is the navigation outcome of rule evaluation.
type DirectiveKind int

const (
	// None means default linear advance.
	None DirectiveKind = iota
	// GoTo jumps to Directive.Target.
	GoTo
	// Exit leaves the enclosing branch.
	Exit
)

func (k DirectiveKind) String() string {
	switch k {
	case GoTo:
		return "goTo"
	case Exit:
		return "exitBranch"
	}
	return "none"
}

// Directive is what the navigator should do after leaving a step.
type Directive struct {
	Kind   DirectiveKind
	Target string
	// Rule is the index of the matching rule, -1 when none matched.
	Rule     int
	Operator domain.RuleOperator
}

// Evaluator maps a step and its answer to a directive. Implementations must be pure.
type Evaluator func(node *domain.Node, answer *domain.Value) Directive

// Evaluate applies node's survey rules in declaration order. The first matching rule wins.
func Evaluate(node *domain.Node, answer *domain.Value) Directive {
	for i, r := range node.SurveyRules {
		if !Matches(r, answer) {
			continue
		}
		d := Directive{Kind: GoTo, Target: r.SkipTo, Rule: i, Operator: r.EffectiveOperator()}
		if r.SkipTo == domain.ExitBranch {
			d.Kind = Exit
			d.Target = ""
		}
		return d
	}
	return Directive{Kind: None, Rule: -1}
}

// Matches reports whether a single rule matches the answer. A nil answer
// behaves like null. Ordered comparisons between values that are not both
// numeric or both strings never match.
func Matches(r domain.SurveyRule, answer *domain.Value) bool {
	op := r.EffectiveOperator()
	if op == domain.OpSkip {
		return true
	}
	if r.SkipTo == "" {
		return false
	}

	var got domain.Value
	if answer != nil {
		got = *answer
	}
	var want domain.Value
	if r.MatchingValue != nil {
		want = *r.MatchingValue
	}

	switch op {
	case domain.OpEqual:
		return got.Equal(want)
	case domain.OpNotEqual:
		return !got.Equal(want)
	}

	if r.MatchingValue == nil || answer == nil {
		return false
	}
	cmp, ok := got.Compare(want)
	if !ok {
		return false
	}
	switch op {
	case domain.OpLessThan:
		return cmp < 0
	case domain.OpLessOrEqual:
		return cmp <= 0
	case domain.OpGreaterThan:
		return cmp > 0
	case domain.OpGreaterOrEqual:
		return cmp >= 0
	}
	return false
}
