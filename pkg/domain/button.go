package domain

// ButtonAction identifies a navigation button. Values outside the navigation
// vocabulary are app-defined custom actions.
type ButtonAction string

const (
	ActionGoForward          ButtonAction = "goForward"
	ActionGoBackward         ButtonAction = "goBackward"
	ActionSkip               ButtonAction = "skip"
	ActionCancel             ButtonAction = "cancel"
	ActionPause              ButtonAction = "pause"
	ActionReviewInstructions ButtonAction = "reviewInstructions"
)

// NavigationActions lists the built-in vocabulary in display order.
var NavigationActions = []ButtonAction{
	ActionGoBackward,
	ActionGoForward,
	ActionSkip,
	ActionPause,
	ActionCancel,
	ActionReviewInstructions,
}

// ParseButtonAction maps a raw string onto the vocabulary, falling back to a custom action.
func ParseButtonAction(raw string) ButtonAction {
	for _, a := range NavigationActions {
		if string(a) == raw {
			return a
		}
	}
	return ButtonAction(raw)
}

// IsCustom reports whether the action is app-defined.
func (a ButtonAction) IsCustom() bool {
	if a == "" {
		return false
	}
	for _, n := range NavigationActions {
		if a == n {
			return false
		}
	}
	return true
}

// ButtonInfo overrides how an action is presented.
type ButtonInfo struct {
	Title  string `json:"buttonTitle,omitempty"`
	Image  string `json:"iconName,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
}
