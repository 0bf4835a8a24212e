package schema

import (
	"fmt"

	"github.com/aretw0/quire/pkg/domain"
)

// ValidateAnswer checks a value against the input declared by node.
// Every failure wraps domain.ErrInvalidAnswer.
func ValidateAnswer(node *domain.Node, value domain.Value) error {
	key := node.Identifier
	if !node.AcceptsInput() {
		return &ValidationError{Key: key, Reason: "step does not accept input"}
	}
	if value.IsNull() {
		return &ValidationError{Key: key, Reason: "answer is null"}
	}
	field := node.Input
	if field == nil {
		return nil
	}

	typ, err := ForAnswerType(field.AnswerType)
	if err != nil {
		return &ValidationError{Key: key, Reason: err.Error()}
	}
	if err := typ.Validate(value); err != nil {
		// Free text beside the choices is a string whatever the choice type.
		if !(field.AllowsOther() && value.Kind() == domain.KindString && field.AnswerType.Kind != domain.AnswerArray) {
			return &ValidationError{Key: key, Reason: err.Error(), Value: &value}
		}
	}

	var errs []error
	errs = append(errs, validateChoices(key, field, value)...)
	if err := validateRange(key, field, value); err != nil {
		errs = append(errs, err)
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return &AggregateError{Errors: errs}
}

func validateChoices(key string, field *domain.InputField, value domain.Value) []error {
	if len(field.Choices) == 0 {
		return nil
	}
	selected := []domain.Value{value}
	if value.Kind() == domain.KindArray {
		selected = value.Items()
	}

	var errs []error
	if field.SingleChoice && len(selected) > 1 {
		errs = append(errs, &ValidationError{Key: key, Reason: "only one choice may be selected", Value: &value})
	}

	seen := make(map[int]bool, len(selected))
	others, exclusive := 0, ""
	for i, item := range selected {
		idx := choiceIndex(field.Choices, item)
		if idx < 0 {
			if field.AllowsOther() && item.Kind() == domain.KindString {
				others++
				if others > 1 {
					errs = append(errs, &ValidationError{Key: fmt.Sprintf("%s[%d]", key, i), Reason: "only one free-text answer is allowed"})
				}
				continue
			}
			errs = append(errs, &ValidationError{Key: fmt.Sprintf("%s[%d]", key, i), Reason: fmt.Sprintf("%s is not one of the choices", item)})
			continue
		}
		if seen[idx] {
			errs = append(errs, &ValidationError{Key: fmt.Sprintf("%s[%d]", key, i), Reason: fmt.Sprintf("choice %s selected twice", item)})
		}
		seen[idx] = true
		if field.Choices[idx].Exclusive {
			exclusive = field.Choices[idx].Text
		}
	}
	if exclusive != "" && len(selected) > 1 {
		errs = append(errs, &ValidationError{Key: key, Reason: fmt.Sprintf("%q cannot be combined with other choices", exclusive)})
	}
	return errs
}

func choiceIndex(choices []domain.Choice, v domain.Value) int {
	for i := range choices {
		if choices[i].Value.Equal(v) {
			return i
		}
	}
	return -1
}

func validateRange(key string, field *domain.InputField, value domain.Value) error {
	if field.Style != domain.InputLikert && field.Max <= field.Min {
		return nil
	}
	lo, hi := domain.Int(int64(field.Min)), domain.Int(int64(field.Max))
	below, ok1 := value.Compare(lo)
	above, ok2 := value.Compare(hi)
	if !ok1 || !ok2 {
		return &ValidationError{Key: key, Reason: "scale answers must be numeric", Value: &value}
	}
	if below < 0 || above > 0 {
		return &ValidationError{Key: key, Reason: fmt.Sprintf("must be between %d and %d", field.Min, field.Max), Value: &value}
	}
	return nil
}
