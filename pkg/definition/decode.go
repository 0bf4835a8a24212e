package definition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDefinition is wrapped by every decoding failure.
var ErrInvalidDefinition = errors.New("invalid definition")

// Error locates a decoding failure within the document.
type Error struct {
	// Path is the slash-joined identifier path, empty for the document itself.
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "definition: " + e.Err.Error()
	}
	return fmt.Sprintf("definition: %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrInvalidDefinition, e.Err} }

// Decode parses a YAML or JSON assessment definition.
func Decode(data []byte) (*domain.Assessment, error) {
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	return doc.Assessment()
}

// DecodeDocument parses a YAML or JSON definition without converting it.
func DecodeDocument(data []byte) (*AssessmentDocument, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &Error{Err: fmt.Errorf("parse: %w", err)}
	}
	if raw == nil {
		return nil, &Error{Err: errors.New("empty document")}
	}
	return DecodeMap(raw)
}

// DecodeMap decodes an already parsed document. Unknown keys are rejected.
func DecodeMap(raw map[string]any) (*AssessmentDocument, error) {
	var doc AssessmentDocument
	if err := decodeStrict(raw, &doc); err != nil {
		return nil, &Error{Err: err}
	}
	return &doc, nil
}

func decodeStrict(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// Assessment converts the document into the immutable definition.
func (d *AssessmentDocument) Assessment() (*domain.Assessment, error) {
	if d.ID == "" {
		return nil, &Error{Err: errors.New("assessment id is required")}
	}
	switch d.Type {
	case "", string(domain.KindAssessment):
	default:
		return nil, &Error{Path: d.ID, Err: fmt.Errorf("root must be an assessment, got %q", d.Type)}
	}

	step := d.StepDocument
	step.Type = string(domain.KindAssessment)
	node, err := convertStep(step, "")
	if err != nil {
		return nil, err
	}
	return &domain.Assessment{
		Node:             node,
		Version:          d.Version,
		EstimatedMinutes: d.EstimatedMinutes,
	}, nil
}

func convertStep(doc StepDocument, parent string) (domain.Node, error) {
	path := doc.ID
	if parent != "" {
		path = parent + "/" + doc.ID
	}
	fail := func(err error) (domain.Node, error) {
		return domain.Node{}, &Error{Path: path, Err: err}
	}

	if doc.ID == "" {
		return domain.Node{}, &Error{Path: parent, Err: errors.New("step without id")}
	}
	if strings.Contains(doc.ID, "/") {
		return fail(errors.New("identifiers cannot contain '/'"))
	}
	if doc.ID == domain.ExitBranch {
		return fail(fmt.Errorf("%q is reserved", domain.ExitBranch))
	}

	kind, err := parseKind(doc)
	if err != nil {
		return fail(err)
	}

	node := domain.Node{
		Identifier: doc.ID,
		Kind:       kind,
		CustomType: doc.CustomType,
		Title:      doc.Title,
		Subtitle:   doc.Subtitle,
		Detail:     doc.Detail,
	}

	switch {
	case kind.IsBranch() && doc.Input != nil:
		return fail(fmt.Errorf("%s cannot collect input", kind))
	case !kind.IsBranch() && len(doc.Steps) > 0:
		return fail(fmt.Errorf("%s cannot have steps", kind))
	case kind == domain.KindCustom && doc.CustomType == "":
		return fail(errors.New("custom step needs custom_type"))
	case kind != domain.KindCustom && doc.CustomType != "":
		return fail(fmt.Errorf("custom_type set on %s", kind))
	}

	for _, child := range doc.Steps {
		c, err := convertStep(child, path)
		if err != nil {
			return domain.Node{}, err
		}
		node.Children = append(node.Children, c)
	}

	if doc.Input != nil {
		in, err := convertInput(doc.Input)
		if err != nil {
			return fail(fmt.Errorf("input: %w", err))
		}
		node.Input = in
	} else if kind == domain.KindQuestion {
		node.Input = &domain.InputField{Style: domain.InputFree, AnswerType: domain.AnswerType{Kind: domain.AnswerString}}
	}

	for i, r := range doc.Rules {
		rule, err := convertRule(r)
		if err != nil {
			return fail(fmt.Errorf("rule %d: %w", i, err))
		}
		node.SurveyRules = append(node.SurveyRules, rule)
	}

	if len(doc.Buttons) > 0 {
		node.Buttons = make(map[domain.ButtonAction]domain.ButtonInfo, len(doc.Buttons))
		for name, raw := range doc.Buttons {
			info, err := convertButton(raw)
			if err != nil {
				return fail(fmt.Errorf("button %q: %w", name, err))
			}
			node.Buttons[domain.ParseButtonAction(name)] = info
		}
	}
	for _, name := range doc.Hide {
		node.HideButtons = append(node.HideButtons, domain.ParseButtonAction(name))
	}

	if len(doc.Payload) > 0 {
		node.Payload = make(map[string]any, len(doc.Payload))
		for k, v := range doc.Payload {
			node.Payload[k] = v
		}
	}
	return node, nil
}

func parseKind(doc StepDocument) (domain.NodeKind, error) {
	switch doc.Type {
	case "":
		switch {
		case len(doc.Steps) > 0:
			return domain.KindSection, nil
		case doc.Input != nil:
			return domain.KindQuestion, nil
		}
		return domain.KindInstruction, nil
	case "task":
		return domain.KindAssessment, nil
	}
	kind := domain.NodeKind(doc.Type)
	if !kind.Valid() {
		return "", fmt.Errorf("unknown step type %q", doc.Type)
	}
	return kind, nil
}

func convertInput(doc *InputDocument) (*domain.InputField, error) {
	in := &domain.InputField{
		Style:          domain.InputStyle(doc.Style),
		Optional:       doc.Optional,
		SkipText:       doc.SkipText,
		SingleChoice:   doc.SingleChoice,
		OtherInputText: doc.Other,
		Min:            doc.Min,
		Max:            doc.Max,
		MinLabel:       doc.MinLabel,
		MaxLabel:       doc.MaxLabel,
	}

	for i, raw := range doc.Choices {
		c, err := convertChoice(raw)
		if err != nil {
			return nil, fmt.Errorf("choice %d: %w", i, err)
		}
		in.Choices = append(in.Choices, c)
	}

	if in.Style == "" {
		switch {
		case len(in.Choices) > 0:
			in.Style = domain.InputChoice
		case in.Max > in.Min:
			in.Style = domain.InputLikert
		default:
			in.Style = domain.InputFree
		}
	}
	switch in.Style {
	case domain.InputFree:
	case domain.InputChoice:
		if len(in.Choices) == 0 {
			return nil, errors.New("choice input without choices")
		}
	case domain.InputLikert:
		if in.Max <= in.Min {
			return nil, fmt.Errorf("likert range %d..%d is empty", in.Min, in.Max)
		}
	default:
		return nil, fmt.Errorf("unknown style %q", doc.Style)
	}

	if doc.Type != "" {
		at, err := schema.ParseType(doc.Type)
		if err != nil {
			return nil, err
		}
		in.AnswerType = at
	} else {
		in.AnswerType = inferAnswerType(in)
	}
	return in, nil
}

// inferAnswerType derives the answer type from the input's shape:
// likert records integers, choices record the type of their first value
// (an array of it unless single choice), free input records strings.
func inferAnswerType(in *domain.InputField) domain.AnswerType {
	switch in.Style {
	case domain.InputLikert:
		return domain.AnswerType{Kind: domain.AnswerInteger}
	case domain.InputChoice:
		elem := answerKindOf(in.Choices[0].Value)
		if in.SingleChoice {
			return domain.AnswerType{Kind: elem}
		}
		return domain.AnswerType{Kind: domain.AnswerArray, BaseType: elem}
	}
	return domain.AnswerType{Kind: domain.AnswerString}
}

func answerKindOf(v domain.Value) domain.AnswerKind {
	switch v.Kind() {
	case domain.KindBoolean:
		return domain.AnswerBoolean
	case domain.KindInteger:
		return domain.AnswerInteger
	case domain.KindNumber:
		return domain.AnswerNumber
	case domain.KindObject:
		return domain.AnswerObject
	}
	return domain.AnswerString
}

func convertChoice(raw any) (domain.Choice, error) {
	switch v := raw.(type) {
	case string:
		return domain.Choice{Text: v, Value: domain.String(v)}, nil
	case map[string]any, map[any]any:
		var doc ChoiceDocument
		if err := decodeStrict(v, &doc); err != nil {
			return domain.Choice{}, err
		}
		if doc.Text == "" {
			return domain.Choice{}, errors.New("choice without text")
		}
		value := domain.String(doc.Text)
		if doc.Value != nil {
			var err error
			if value, err = domain.FromAny(doc.Value); err != nil {
				return domain.Choice{}, err
			}
		}
		return domain.Choice{Text: doc.Text, Value: value, Exclusive: doc.Exclusive}, nil
	}
	return domain.Choice{}, fmt.Errorf("invalid choice type %T", raw)
}

func convertRule(doc RuleDocument) (domain.SurveyRule, error) {
	op, err := domain.ParseRuleOperator(doc.Op)
	if err != nil {
		return domain.SurveyRule{}, err
	}
	if doc.SkipTo == "" {
		return domain.SurveyRule{}, errors.New("skip_to is required")
	}
	rule := domain.SurveyRule{Operator: op, SkipTo: doc.SkipTo}
	if doc.Value != nil {
		v, err := domain.FromAny(doc.Value)
		if err != nil {
			return domain.SurveyRule{}, fmt.Errorf("value: %w", err)
		}
		rule.MatchingValue = &v
	}
	return rule, nil
}

func convertButton(raw any) (domain.ButtonInfo, error) {
	switch v := raw.(type) {
	case string:
		return domain.ButtonInfo{Title: v}, nil
	case map[string]any, map[any]any:
		var doc ButtonDocument
		if err := decodeStrict(v, &doc); err != nil {
			return domain.ButtonInfo{}, err
		}
		return domain.ButtonInfo{Title: doc.Title, Image: doc.Image, Hidden: doc.Hidden}, nil
	}
	return domain.ButtonInfo{}, fmt.Errorf("invalid button type %T", raw)
}
