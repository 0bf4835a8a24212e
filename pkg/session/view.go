package session

import (
	"maps"
	"slices"

	"github.com/aretw0/quire/pkg/domain"
)

var defaultTitles = map[domain.ButtonAction]string{
	domain.ActionGoForward:          "Next",
	domain.ActionGoBackward:         "Back",
	domain.ActionSkip:               "Skip",
	domain.ActionCancel:             "Cancel",
	domain.ActionPause:              "Pause",
	domain.ActionReviewInstructions: "Review instructions",
}

// view projects the navigator position. Callers hold s.mu.
func (s *Session) view() domain.StepView {
	v := domain.StepView{
		SessionID:    s.id,
		AssessmentID: s.graph.Root().Identifier,
		Status:       s.status,
		Terminal:     s.status.Terminal(),
	}
	node := s.nav.Current()
	if v.Terminal || node == nil {
		return v
	}

	v.Path = slices.Clone(s.nav.CurrentPath())
	v.Identifier = node.Identifier
	v.Kind = node.Kind
	v.CustomType = node.CustomType
	v.Title, v.Subtitle, v.Detail = domain.DisplayText(node)
	if node.Input != nil {
		in := node.Input.Clone()
		v.Input = &in
	}
	if a := s.nav.Answer(); a != nil {
		c := a.Clone()
		v.Answer = &c
	}
	v.CanProceed = s.canProceed()
	v.CanPause = s.nav.CanPause() && s.status == domain.StatusActive
	v.Index, v.Total = s.nav.Progress()
	v.Buttons = s.buttons(node)
	if len(node.Payload) > 0 {
		v.Payload = maps.Clone(node.Payload)
	}
	return v
}

func (s *Session) buttons(node *domain.Node) []domain.ButtonView {
	visible := func(a domain.ButtonAction) bool {
		switch a {
		case domain.ActionSkip:
			if !node.AcceptsInput() || !node.IsOptional() {
				return false
			}
		case domain.ActionPause:
			return s.nav.CanPause()
		case domain.ActionReviewInstructions:
			// Opt-in per step.
			if _, ok := node.Buttons[a]; !ok {
				return false
			}
		}
		return !s.nav.IsHidden(a)
	}

	var out []domain.ButtonView
	add := func(a domain.ButtonAction) {
		b := domain.ButtonView{Action: a, Title: defaultTitles[a]}
		switch {
		case a == domain.ActionGoForward && node.Kind == domain.KindCompletion:
			b.Title = "Done"
		case a == domain.ActionSkip && node.Input != nil && node.Input.SkipText != "":
			b.Title = node.Input.SkipText
		}
		if info, ok := node.Buttons[a]; ok {
			if info.Title != "" {
				b.Title = info.Title
			}
			b.Image = info.Image
		}
		if b.Title == "" {
			b.Title = string(a)
		}
		out = append(out, b)
	}

	for _, a := range domain.NavigationActions {
		if visible(a) {
			add(a)
		}
	}
	custom := make([]domain.ButtonAction, 0, len(node.Buttons))
	for a, info := range node.Buttons {
		if a.IsCustom() && !info.Hidden {
			custom = append(custom, a)
		}
	}
	slices.Sort(custom)
	for _, a := range custom {
		add(a)
	}
	return out
}
