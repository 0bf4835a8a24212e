package runner

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/quire/pkg/domain"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
	ErrTooManyItems  = errors.New("answer has too many items")
)

// AnswerPolicy bounds and cleans what respondents type before it reaches a
// session. Every string of an answer must be valid UTF-8 and loses control
// characters other than newline, tab and carriage return.
type AnswerPolicy struct {
	// MaxTextSize bounds each string of an answer, in bytes.
	MaxTextSize int
	// MaxOtherSize bounds free text typed beside the choices of a choice
	// question. Zero falls back to MaxTextSize.
	MaxOtherSize int
	// MaxItems bounds the elements of array answers and the fields of object answers.
	MaxItems int
}

// DefaultAnswerPolicy is used for zero fields.
var DefaultAnswerPolicy = AnswerPolicy{
	MaxTextSize:  4096,
	MaxOtherSize: 512,
	MaxItems:     64,
}

func (p AnswerPolicy) withDefaults() AnswerPolicy {
	if p.MaxTextSize <= 0 {
		p.MaxTextSize = DefaultAnswerPolicy.MaxTextSize
	}
	if p.MaxOtherSize <= 0 {
		p.MaxOtherSize = min(DefaultAnswerPolicy.MaxOtherSize, p.MaxTextSize)
	}
	if p.MaxItems <= 0 {
		p.MaxItems = DefaultAnswerPolicy.MaxItems
	}
	return p
}

// CleanLine applies the text rules to a raw input line, commands included.
func (p AnswerPolicy) CleanLine(line string) (string, error) {
	return cleanText(line, p.withDefaults().MaxTextSize)
}

// Clean returns v with every string cleaned. The field, when known, decides
// which strings count as "other" text: on choice questions that is any string
// that is not the value of a declared choice. Violations wrap
// domain.ErrInvalidAnswer so they can be retried like any invalid answer.
func (p AnswerPolicy) Clean(in *domain.InputField, v domain.Value) (domain.Value, error) {
	p = p.withDefaults()
	out, err := p.clean(in, v, 0)
	if err != nil {
		return domain.Value{}, fmt.Errorf("%w: %w", domain.ErrInvalidAnswer, err)
	}
	return out, nil
}

func (p AnswerPolicy) clean(in *domain.InputField, v domain.Value, depth int) (domain.Value, error) {
	switch v.Kind() {
	case domain.KindString:
		s, _ := v.StringValue()
		clean, err := cleanText(s, p.limitFor(in, v, depth))
		if err != nil {
			return domain.Value{}, err
		}
		return domain.String(clean), nil

	case domain.KindArray:
		items := v.Items()
		if len(items) > p.MaxItems {
			return domain.Value{}, fmt.Errorf("%w: %d > %d", ErrTooManyItems, len(items), p.MaxItems)
		}
		for i, item := range items {
			clean, err := p.clean(in, item, depth+1)
			if err != nil {
				return domain.Value{}, fmt.Errorf("item %d: %w", i, err)
			}
			items[i] = clean
		}
		return domain.Array(items...), nil

	case domain.KindObject:
		keys := v.Keys()
		if len(keys) > p.MaxItems {
			return domain.Value{}, fmt.Errorf("%w: %d > %d", ErrTooManyItems, len(keys), p.MaxItems)
		}
		fields := make(map[string]domain.Value, len(keys))
		for _, k := range keys {
			field, _ := v.Field(k)
			clean, err := p.clean(nil, field, depth+1)
			if err != nil {
				return domain.Value{}, fmt.Errorf("field %q: %w", k, err)
			}
			fields[k] = clean
		}
		return domain.Object(fields), nil
	}
	return v, nil
}

// limitFor picks the size bound of a string at the top level of an answer or
// one level into a multiple choice array.
func (p AnswerPolicy) limitFor(in *domain.InputField, v domain.Value, depth int) int {
	if in == nil || in.Style != domain.InputChoice || depth > 1 {
		return p.MaxTextSize
	}
	for _, c := range in.Choices {
		if c.Value.Equal(v) {
			return p.MaxTextSize
		}
	}
	return p.MaxOtherSize
}

// cleanText rejects oversized or malformed text and strips terminal control
// sequences that would corrupt logs and prompts.
func cleanText(s string, limit int) (string, error) {
	if len(s) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(s), limit)
	}
	if !utf8.ValidString(s) {
		return "", ErrInvalidUTF8
	}
	if strings.IndexFunc(s, isUnsafeControl) < 0 {
		return s, nil
	}
	return strings.Map(func(r rune) rune {
		if isUnsafeControl(r) {
			return -1
		}
		return r
	}, s), nil
}

func isUnsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}
