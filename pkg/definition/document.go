package definition

// AssessmentDocument is the on-disk shape of an assessment definition.
// It uses "mapstructure" tags so YAML, JSON and frontmatter decode alike.
type AssessmentDocument struct {
	StepDocument `mapstructure:",squash"`

	Version          string `json:"version" mapstructure:"version"`
	EstimatedMinutes int    `json:"estimated_minutes" mapstructure:"estimated_minutes"`
}

// StepDocument describes one step or branch.
// Type defaults to "section" when Steps are present, "question" when an
// Input is present, and "instruction" otherwise.
type StepDocument struct {
	ID         string `json:"id" mapstructure:"id"`
	Type       string `json:"type" mapstructure:"type"`
	CustomType string `json:"custom_type" mapstructure:"custom_type"`

	Title    string `json:"title" mapstructure:"title"`
	Subtitle string `json:"subtitle" mapstructure:"subtitle"`
	Detail   string `json:"detail" mapstructure:"detail"`

	Steps []StepDocument `json:"steps" mapstructure:"steps"`

	Input *InputDocument `json:"input" mapstructure:"input"`
	Rules []RuleDocument `json:"rules" mapstructure:"rules"`

	// Buttons is keyed by action name. A bare string sets the title.
	Buttons map[string]any `json:"buttons" mapstructure:"buttons"`
	Hide    []string       `json:"hide" mapstructure:"hide"`

	Payload map[string]any `json:"payload" mapstructure:"payload"`
}

// InputDocument configures the answer a question collects.
type InputDocument struct {
	// Type is a compact type name ("integer", "[string]").
	Type     string `json:"type" mapstructure:"type"`
	Style    string `json:"style" mapstructure:"style"`
	Optional bool   `json:"optional" mapstructure:"optional"`
	SkipText string `json:"skip_text" mapstructure:"skip_text"`

	// Choices holds plain strings or maps with text, value and exclusive keys.
	Choices      []any  `json:"choices" mapstructure:"choices"`
	SingleChoice bool   `json:"single_choice" mapstructure:"single_choice"`
	Other        string `json:"other" mapstructure:"other"`

	Min      int    `json:"min" mapstructure:"min"`
	Max      int    `json:"max" mapstructure:"max"`
	MinLabel string `json:"min_label" mapstructure:"min_label"`
	MaxLabel string `json:"max_label" mapstructure:"max_label"`
}

// ChoiceDocument is the long form of a choice.
type ChoiceDocument struct {
	Text      string `json:"text" mapstructure:"text"`
	Value     any    `json:"value" mapstructure:"value"`
	Exclusive bool   `json:"exclusive" mapstructure:"exclusive"`
}

// RuleDocument is a survey rule. Op accepts long names and short aliases.
type RuleDocument struct {
	Op     string `json:"op" mapstructure:"op"`
	Value  any    `json:"value" mapstructure:"value"`
	SkipTo string `json:"skip_to" mapstructure:"skip_to"`
}

// ButtonDocument is the long form of a button override.
type ButtonDocument struct {
	Title  string `json:"title" mapstructure:"title"`
	Image  string `json:"image" mapstructure:"image"`
	Hidden bool   `json:"hidden" mapstructure:"hidden"`
}
