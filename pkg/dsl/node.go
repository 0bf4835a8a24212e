package dsl

import (
	"fmt"

	"github.com/aretw0/quire/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a step.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

func (n *NodeBuilder) build() domain.Node {
	return n.node.Clone()
}

// Title sets the primary display text.
func (n *NodeBuilder) Title(title string) *NodeBuilder {
	n.node.Title = title
	return n
}

func (n *NodeBuilder) Subtitle(subtitle string) *NodeBuilder {
	n.node.Subtitle = subtitle
	return n
}

func (n *NodeBuilder) Detail(detail string) *NodeBuilder {
	n.node.Detail = detail
	return n
}

// Optional lets the respondent continue without answering.
func (n *NodeBuilder) Optional() *NodeBuilder {
	n.input().Optional = true
	return n
}

// SkipText sets the label of the skip button.
func (n *NodeBuilder) SkipText(text string) *NodeBuilder {
	n.input().SkipText = text
	return n
}

// Choices turns the question into a choice list.
func (n *NodeBuilder) Choices(single bool, choices ...domain.Choice) *NodeBuilder {
	in := n.input()
	in.Style = domain.InputChoice
	in.SingleChoice = single
	in.Choices = append(in.Choices, choices...)
	if !single && in.AnswerType.Kind != domain.AnswerArray {
		in.AnswerType = domain.AnswerType{Kind: domain.AnswerArray, BaseType: in.AnswerType.Kind}
	}
	return n
}

// Other accepts free text beside the choices.
func (n *NodeBuilder) Other(placeholder string) *NodeBuilder {
	n.input().OtherInputText = placeholder
	return n
}

// Likert turns the question into an integer scale.
func (n *NodeBuilder) Likert(min, max int, minLabel, maxLabel string) *NodeBuilder {
	in := n.input()
	in.Style = domain.InputLikert
	in.AnswerType = domain.AnswerType{Kind: domain.AnswerInteger}
	in.Min, in.Max = min, max
	in.MinLabel, in.MaxLabel = minLabel, maxLabel
	return n
}

// Rule appends a survey rule. value may be nil for operators that do not compare.
func (n *NodeBuilder) Rule(op domain.RuleOperator, value any, target string) *NodeBuilder {
	rule := domain.SurveyRule{Operator: op, SkipTo: target}
	if value != nil {
		v, err := domain.FromAny(value)
		if err != nil {
			n.builder.fail(fmt.Errorf("node %q: rule value: %w", n.node.Identifier, err))
			return n
		}
		rule.MatchingValue = &v
	}
	n.node.SurveyRules = append(n.node.SurveyRules, rule)
	return n
}

// SkipIf jumps to target when the answer equals value.
func (n *NodeBuilder) SkipIf(value any, target string) *NodeBuilder {
	return n.Rule(domain.OpEqual, value, target)
}

// Always jumps to target regardless of the answer.
func (n *NodeBuilder) Always(target string) *NodeBuilder {
	return n.Rule(domain.OpSkip, nil, target)
}

// Button overrides the title of a navigation action.
func (n *NodeBuilder) Button(action domain.ButtonAction, title string) *NodeBuilder {
	if n.node.Buttons == nil {
		n.node.Buttons = make(map[domain.ButtonAction]domain.ButtonInfo)
	}
	info := n.node.Buttons[action]
	info.Title = title
	n.node.Buttons[action] = info
	return n
}

// Hide hides navigation actions on this step.
func (n *NodeBuilder) Hide(actions ...domain.ButtonAction) *NodeBuilder {
	n.node.HideButtons = append(n.node.HideButtons, actions...)
	return n
}

// Payload attaches app-defined data to a custom step.
func (n *NodeBuilder) Payload(key string, value any) *NodeBuilder {
	if n.node.Payload == nil {
		n.node.Payload = make(map[string]any)
	}
	n.node.Payload[key] = value
	return n
}

// Input lets a custom step collect an answer.
func (n *NodeBuilder) Input(kind domain.AnswerKind) *NodeBuilder {
	n.input().AnswerType = domain.AnswerType{Kind: kind}
	return n
}

func (n *NodeBuilder) input() *domain.InputField {
	if n.node.Input == nil {
		n.node.Input = &domain.InputField{Style: domain.InputFree, AnswerType: domain.AnswerType{Kind: domain.AnswerString}}
	}
	return n.node.Input
}
