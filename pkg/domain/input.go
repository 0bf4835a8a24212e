package domain

// AnswerKind is the base type of a recorded answer.
type AnswerKind string

const (
	AnswerString  AnswerKind = "string"
	AnswerInteger AnswerKind = "integer"
	AnswerNumber  AnswerKind = "number"
	AnswerBoolean AnswerKind = "boolean"
	AnswerArray   AnswerKind = "array"
	AnswerObject  AnswerKind = "object"
)

// AnswerType declares what a question records. For arrays, BaseType names the element type.
type AnswerType struct {
	Kind     AnswerKind `json:"type"`
	BaseType AnswerKind `json:"baseType,omitempty"`
}

// InputStyle selects the question widget family. Only the navigation-relevant
// parts (validation and optionality) are interpreted here.
type InputStyle string

const (
	InputFree   InputStyle = "free"
	InputChoice InputStyle = "choice"
	InputLikert InputStyle = "likert"
)

// Choice is one option of a choice question.
type Choice struct {
	Text  string `json:"text"`
	Value Value  `json:"value"`
	// Exclusive choices deselect every other choice.
	Exclusive bool `json:"exclusive,omitempty"`
}

// InputField describes the answer collected by a question.
type InputField struct {
	Style      InputStyle `json:"style,omitempty"`
	AnswerType AnswerType `json:"answerType"`
	Optional   bool       `json:"optional,omitempty"`

	// SkipText labels the skip button. Empty means the default label.
	SkipText string `json:"skipStepText,omitempty"`

	// Choice questions.
	Choices        []Choice `json:"choices,omitempty"`
	SingleChoice   bool     `json:"singleChoice,omitempty"`
	OtherInputText string   `json:"other,omitempty"`

	// Likert questions.
	Min      int    `json:"min,omitempty"`
	Max      int    `json:"max,omitempty"`
	MinLabel string `json:"minLabel,omitempty"`
	MaxLabel string `json:"maxLabel,omitempty"`
}

// Clone returns a deep copy.
func (f InputField) Clone() InputField {
	out := f
	if f.Choices != nil {
		out.Choices = make([]Choice, len(f.Choices))
		for i, c := range f.Choices {
			c.Value = c.Value.Clone()
			out.Choices[i] = c
		}
	}
	return out
}

// AllowsOther reports whether free text is accepted beside the choices.
func (f *InputField) AllowsOther() bool {
	return f.OtherInputText != ""
}
