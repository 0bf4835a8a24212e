package runner

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/quire/pkg/domain"
)

// commandAliases maps the short text commands to button actions.
var commandAliases = map[string]domain.ButtonAction{
	"next":   domain.ActionGoForward,
	"back":   domain.ActionGoBackward,
	"skip":   domain.ActionSkip,
	"pause":  domain.ActionPause,
	"cancel": domain.ActionCancel,
	"review": domain.ActionReviewInstructions,
}

// ParseCommand turns a line of text into a Command for the given step.
//
//   - ""            goes forward
//   - "exit", "quit" stops the runner
//   - ":clear"      clears the answer
//   - ":<action>"   triggers a button action (aliases: next, back, skip, pause, cancel, review)
//   - anything else is parsed as the answer and goes forward
func ParseCommand(view domain.StepView, line string) (Command, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return Command{Action: domain.ActionGoForward}, nil
	case line == "exit" || line == "quit":
		return Command{Quit: true}, nil
	case line == ":clear":
		return Command{Clear: true}, nil
	case strings.HasPrefix(line, ":"):
		name := strings.TrimSpace(line[1:])
		if name == "" {
			return Command{}, fmt.Errorf("%w: empty action", ErrInvalidCommand)
		}
		if a, ok := commandAliases[strings.ToLower(name)]; ok {
			return Command{Action: a}, nil
		}
		return Command{Action: domain.ParseButtonAction(name)}, nil
	}

	if view.Input == nil {
		return Command{}, fmt.Errorf("%w: this step takes no answer, press Enter to continue", ErrInvalidCommand)
	}
	v, err := ParseAnswer(view.Input, line)
	if err != nil {
		return Command{}, err
	}
	return Command{Action: domain.ActionGoForward, Answer: &v}, nil
}

// ParseAnswer converts typed text into a value of the field's answer type.
// Choice questions accept 1-based indexes or choice texts, comma separated
// when several may be selected.
func ParseAnswer(in *domain.InputField, text string) (domain.Value, error) {
	text = strings.TrimSpace(text)
	switch in.Style {
	case domain.InputChoice:
		return parseChoices(in, text)
	case domain.InputLikert:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return domain.Value{}, fmt.Errorf("%w: expected a number between %d and %d", domain.ErrInvalidAnswer, in.Min, in.Max)
		}
		return domain.Int(n), nil
	}
	return parseScalar(in.AnswerType, text)
}

func parseChoices(in *domain.InputField, text string) (domain.Value, error) {
	tokens := []string{text}
	if !in.SingleChoice {
		tokens = strings.Split(text, ",")
	}
	var picked []domain.Value
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		v, err := pickChoice(in, tok)
		if err != nil {
			return domain.Value{}, err
		}
		picked = append(picked, v)
	}
	if len(picked) == 0 {
		return domain.Value{}, fmt.Errorf("%w: no choice selected", domain.ErrInvalidAnswer)
	}
	if in.SingleChoice {
		return picked[0], nil
	}
	return domain.Array(picked...), nil
}

func pickChoice(in *domain.InputField, tok string) (domain.Value, error) {
	if n, err := strconv.Atoi(tok); err == nil && n >= 1 && n <= len(in.Choices) {
		return in.Choices[n-1].Value.Clone(), nil
	}
	for _, c := range in.Choices {
		if strings.EqualFold(c.Text, tok) {
			return c.Value.Clone(), nil
		}
	}
	if in.AllowsOther() {
		return domain.String(tok), nil
	}
	return domain.Value{}, fmt.Errorf("%w: %q is not one of the choices", domain.ErrInvalidAnswer, tok)
}

func parseScalar(t domain.AnswerType, text string) (domain.Value, error) {
	switch t.Kind {
	case domain.AnswerInteger:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return domain.Value{}, fmt.Errorf("%w: %q is not an integer", domain.ErrInvalidAnswer, text)
		}
		return domain.Int(n), nil
	case domain.AnswerNumber:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return domain.Value{}, fmt.Errorf("%w: %q is not a number", domain.ErrInvalidAnswer, text)
		}
		return domain.Number(f), nil
	case domain.AnswerBoolean:
		switch strings.ToLower(text) {
		case "y", "yes", "true", "1":
			return domain.Bool(true), nil
		case "n", "no", "false", "0":
			return domain.Bool(false), nil
		}
		return domain.Value{}, fmt.Errorf("%w: answer yes or no", domain.ErrInvalidAnswer)
	case domain.AnswerArray:
		base := domain.AnswerType{Kind: t.BaseType}
		if base.Kind == "" {
			base.Kind = domain.AnswerString
		}
		var items []domain.Value
		for _, part := range strings.Split(text, ",") {
			v, err := parseScalar(base, strings.TrimSpace(part))
			if err != nil {
				return domain.Value{}, err
			}
			items = append(items, v)
		}
		return domain.Array(items...), nil
	case domain.AnswerObject:
		var v domain.Value
		if err := json.Unmarshal([]byte(text), &v); err != nil || v.Kind() != domain.KindObject {
			return domain.Value{}, fmt.Errorf("%w: expected a JSON object", domain.ErrInvalidAnswer)
		}
		return v, nil
	}
	return domain.String(text), nil
}
