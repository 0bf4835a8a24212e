package domain

// ActionCall describes a custom button press handed to the host application.
type ActionCall struct {
	SessionID string       `json:"session_id"`
	Action    ButtonAction `json:"action"`
	Path      []string     `json:"path"`
	Node      *Node        `json:"-"`
	Answer    *Value       `json:"answer,omitempty"`
}

// ActionResponse tells the session what to do after a custom action ran.
// Answer, when set, is validated and recorded on the current step; Then, when
// set, is a built-in action performed afterwards (e.g. goForward).
type ActionResponse struct {
	Answer *Value       `json:"answer,omitempty"`
	Then   ButtonAction `json:"then,omitempty"`
}
