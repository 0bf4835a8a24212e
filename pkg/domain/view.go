package domain

// StepView is what a presentation layer needs to render the current step.
// It is a read-only projection; views never mutate the result tree through it.
type StepView struct {
	SessionID    string          `json:"session_id"`
	AssessmentID string          `json:"assessment_id"`
	Status       ExecutionStatus `json:"status"`
	Terminal     bool            `json:"terminal"`

	Path       []string `json:"path,omitempty"`
	Identifier string   `json:"identifier,omitempty"`
	Kind       NodeKind `json:"type,omitempty"`
	CustomType string   `json:"customType,omitempty"`

	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Detail   string `json:"detail,omitempty"`

	Input  *InputField `json:"inputItem,omitempty"`
	Answer *Value      `json:"answer,omitempty"`

	// CanProceed is false while a required answer is missing.
	CanProceed bool         `json:"canProceed"`
	CanPause   bool         `json:"canPause"`
	Buttons    []ButtonView `json:"buttons,omitempty"`

	// Index and Total locate the step within its enclosing branch.
	Index int `json:"index"`
	Total int `json:"total"`

	Payload map[string]any `json:"payload,omitempty"`
}

// ButtonView is a visible button with its resolved title.
type ButtonView struct {
	Action ButtonAction `json:"action"`
	Title  string       `json:"title"`
	Image  string       `json:"image,omitempty"`
}

// DisplayText derives the three text slots of a node. The title falls back to
// the subtitle, then the detail; a slot consumed by the fallback is not repeated,
// and a detail is only shown under a title or subtitle.
func DisplayText(n *Node) (title, subtitle, detail string) {
	switch {
	case n.Title != "":
		return n.Title, n.Subtitle, n.Detail
	case n.Subtitle != "":
		return n.Subtitle, "", n.Detail
	default:
		return n.Detail, "", ""
	}
}
