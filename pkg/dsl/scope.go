package dsl

import (
	"github.com/aretw0/quire/pkg/domain"
)

// ScopeBuilder configures a branch and collects its children in declared order.
type ScopeBuilder struct {
	node     domain.Node
	children []childBuilder
	builder  *Builder
}

type childBuilder interface {
	build() domain.Node
}

func (s *ScopeBuilder) build() domain.Node {
	n := s.node
	n.Children = make([]domain.Node, 0, len(s.children))
	for _, c := range s.children {
		n.Children = append(n.Children, c.build())
	}
	return n
}

func (s *ScopeBuilder) add(id string, kind domain.NodeKind) *NodeBuilder {
	nb := &NodeBuilder{
		node:    domain.Node{Identifier: id, Kind: kind},
		builder: s.builder,
	}
	s.children = append(s.children, nb)
	return nb
}

// Instruction adds a step that shows text only.
func (s *ScopeBuilder) Instruction(id string) *NodeBuilder {
	return s.add(id, domain.KindInstruction)
}

// Question adds a step collecting an answer of the given kind.
func (s *ScopeBuilder) Question(id string, kind domain.AnswerKind) *NodeBuilder {
	nb := s.add(id, domain.KindQuestion)
	nb.node.Input = &domain.InputField{Style: domain.InputFree, AnswerType: domain.AnswerType{Kind: kind}}
	return nb
}

// Completion adds a closing step.
func (s *ScopeBuilder) Completion(id string) *NodeBuilder {
	return s.add(id, domain.KindCompletion)
}

// Custom adds an app-defined leaf step.
func (s *ScopeBuilder) Custom(id, customType string) *NodeBuilder {
	nb := s.add(id, domain.KindCustom)
	nb.node.CustomType = customType
	return nb
}

// Section adds a nested branch and returns its builder.
func (s *ScopeBuilder) Section(id string) *ScopeBuilder {
	sub := &ScopeBuilder{
		node:    domain.Node{Identifier: id, Kind: domain.KindSection},
		builder: s.builder,
	}
	s.children = append(s.children, sub)
	return sub
}

// Task adds a nested assessment branch whose result carries the run UUID.
func (s *ScopeBuilder) Task(id string) *ScopeBuilder {
	sub := s.Section(id)
	sub.node.Kind = domain.KindAssessment
	return sub
}

// Describe sets the branch display text.
func (s *ScopeBuilder) Describe(title, subtitle, detail string) *ScopeBuilder {
	s.node.Title = title
	s.node.Subtitle = subtitle
	s.node.Detail = detail
	return s
}

// HideButtons hides navigation actions on every step of the branch that does not override them.
func (s *ScopeBuilder) HideButtons(actions ...domain.ButtonAction) *ScopeBuilder {
	s.node.HideButtons = append(s.node.HideButtons, actions...)
	return s
}

// Title sets the branch title.
func (s *ScopeBuilder) Title(title string) *ScopeBuilder {
	s.node.Title = title
	return s
}
