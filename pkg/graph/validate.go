package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/quire/pkg/domain"
)

// Severity ranks a definition issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a finding from Validate.
type Issue struct {
	Severity Severity
	Path     Path
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// Validate lints rule targets and branch shapes. Issues do not stop navigation:
// the navigator degrades invalid targets to default advance at runtime.
func (g *Graph) Validate() []Issue {
	var issues []Issue
	if len(g.Root().Children) == 0 {
		issues = append(issues, Issue{Severity: SeverityError, Message: "assessment has no steps"})
	}
	_ = g.Walk(func(p Path, n *domain.Node) error {
		if n.IsBranch() && len(n.Children) == 0 {
			issues = append(issues, Issue{Severity: SeverityWarning, Path: p, Message: "branch has no steps and will be skipped"})
		}
		if len(n.SurveyRules) > 0 && !n.AcceptsInput() {
			issues = append(issues, Issue{Severity: SeverityWarning, Path: p, Message: "rules on a step without input only match skip or null"})
		}
		if n.Kind == domain.KindQuestion && n.Input == nil {
			issues = append(issues, Issue{Severity: SeverityError, Path: p, Message: "question has no input"})
		}
		for i, r := range n.SurveyRules {
			issues = append(issues, g.checkRule(p, i, r)...)
		}
		return nil
	})
	return issues
}

func (g *Graph) checkRule(p Path, i int, r domain.SurveyRule) []Issue {
	at := func(sev Severity, format string, args ...any) Issue {
		return Issue{Severity: sev, Path: p, Message: fmt.Sprintf("rule %d: ", i) + fmt.Sprintf(format, args...)}
	}
	var out []Issue
	if _, err := domain.ParseRuleOperator(string(r.Operator)); err != nil {
		out = append(out, at(SeverityError, "%v", err))
	}
	op := r.EffectiveOperator()
	if op != domain.OpSkip && op != domain.OpEqual && op != domain.OpNotEqual && r.MatchingValue == nil {
		out = append(out, at(SeverityWarning, "%s without a matching value never matches", op))
	}
	switch {
	case r.SkipTo == "":
		out = append(out, at(SeverityError, "missing skip target"))
	case r.SkipTo == domain.ExitBranch:
	case r.SkipTo == p.Last():
		out = append(out, at(SeverityWarning, "targets itself and will fall back to the next step"))
	case g.IsAncestor(p, r.SkipTo):
		out = append(out, at(SeverityWarning, "targets ancestor %q and will fall back to the next step", r.SkipTo))
	case !g.Contains(r.SkipTo):
		out = append(out, at(SeverityError, "unknown target %q", r.SkipTo))
	default:
		if _, err := g.Resolve(p.Parent(), r.SkipTo); err != nil {
			out = append(out, at(SeverityWarning, "target %q is not reachable from %s and exits the branch", r.SkipTo, scopeName(p.Parent())))
		}
	}
	return out
}

func scopeName(p Path) string {
	if len(p) == 0 {
		return "the root"
	}
	return strings.Join(p, "/")
}

// Errors filters issues down to errors.
func Errors(issues []Issue) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}
