package domain

import "slices"

// NodeKind is the closed set of node variants.
type NodeKind string

const (
	// Leaf kinds.
	KindInstruction NodeKind = "instruction"
	KindQuestion    NodeKind = "question"
	KindCompletion  NodeKind = "completion"
	// KindCustom is the escape hatch for app-defined leaf types.
	// CustomType names the type and Payload carries its data.
	KindCustom NodeKind = "custom"

	// Branch kinds.
	KindSection    NodeKind = "section"
	KindAssessment NodeKind = "assessment"
)

// Valid reports whether k is a known kind.
func (k NodeKind) Valid() bool {
	switch k {
	case KindInstruction, KindQuestion, KindCompletion, KindCustom, KindSection, KindAssessment:
		return true
	}
	return false
}

// IsBranch reports whether nodes of this kind own children and a result scope.
func (k NodeKind) IsBranch() bool {
	return k == KindSection || k == KindAssessment
}

// Node is a step or branch in the assessment graph.
// Nodes are immutable once the assessment is loaded.
type Node struct {
	// Identifier is unique within the parent's child list.
	Identifier string   `json:"identifier"`
	Kind       NodeKind `json:"type"`
	CustomType string   `json:"customType,omitempty"`

	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Detail   string `json:"detail,omitempty"`

	// Children holds the declared order of a branch.
	Children []Node `json:"steps,omitempty"`

	// SurveyRules are evaluated in order against the node's answer.
	SurveyRules []SurveyRule `json:"surveyRules,omitempty"`

	// Buttons overrides the descriptor of navigation actions for this node.
	Buttons     map[ButtonAction]ButtonInfo `json:"buttonMap,omitempty"`
	HideButtons []ButtonAction              `json:"shouldHideActions,omitempty"`

	// Input describes the answer collected by a question.
	Input *InputField `json:"inputItem,omitempty"`

	Payload map[string]any `json:"payload,omitempty"`
}

func (n *Node) IsBranch() bool { return n.Kind.IsBranch() }

// AcceptsInput reports whether visiting the node records an AnswerResult.
func (n *Node) AcceptsInput() bool {
	if n.Kind == KindQuestion {
		return true
	}
	return n.Kind == KindCustom && n.Input != nil
}

// IsOptional reports whether the node can be left without an answer.
func (n *Node) IsOptional() bool {
	if !n.AcceptsInput() {
		return true
	}
	return n.Input == nil || n.Input.Optional
}

// ChildIndex returns the position of a direct child, or -1.
func (n *Node) ChildIndex(identifier string) int {
	for i := range n.Children {
		if n.Children[i].Identifier == identifier {
			return i
		}
	}
	return -1
}

// Child returns a direct child by identifier.
func (n *Node) Child(identifier string) (*Node, bool) {
	i := n.ChildIndex(identifier)
	if i < 0 {
		return nil, false
	}
	return &n.Children[i], true
}

// IsHidden reports whether the node hides a button.
func (n *Node) IsHidden(action ButtonAction) bool {
	if info, ok := n.Buttons[action]; ok && info.Hidden {
		return true
	}
	return slices.Contains(n.HideButtons, action)
}

// CanPause is true unless the node hides the pause button.
func (n *Node) CanPause() bool {
	return !n.IsHidden(ActionPause)
}

// Clone returns a deep copy of the node and its subtree.
func (n Node) Clone() Node {
	out := n
	if n.Children != nil {
		out.Children = make([]Node, len(n.Children))
		for i := range n.Children {
			out.Children[i] = n.Children[i].Clone()
		}
	}
	if n.SurveyRules != nil {
		out.SurveyRules = make([]SurveyRule, len(n.SurveyRules))
		for i, r := range n.SurveyRules {
			out.SurveyRules[i] = r.Clone()
		}
	}
	if n.Buttons != nil {
		out.Buttons = make(map[ButtonAction]ButtonInfo, len(n.Buttons))
		for k, v := range n.Buttons {
			out.Buttons[k] = v
		}
	}
	out.HideButtons = slices.Clone(n.HideButtons)
	if n.Input != nil {
		in := n.Input.Clone()
		out.Input = &in
	}
	if n.Payload != nil {
		out.Payload = make(map[string]any, len(n.Payload))
		for k, v := range n.Payload {
			out.Payload[k] = v
		}
	}
	return out
}

// Assessment is the root branch of a run.
type Assessment struct {
	Node
	// Version is recorded as the result's versionString.
	Version          string `json:"versionString,omitempty"`
	EstimatedMinutes int    `json:"estimatedMinutes,omitempty"`
}

// Clone returns a deep copy.
func (a *Assessment) Clone() *Assessment {
	if a == nil {
		return nil
	}
	return &Assessment{Node: a.Node.Clone(), Version: a.Version, EstimatedMinutes: a.EstimatedMinutes}
}
