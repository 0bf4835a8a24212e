package definition_test

import (
	"testing"

	"github.com/aretw0/quire/pkg/definition"
	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const survey = `
id: survey
title: Health survey
version: "2.1"
estimated_minutes: 4
steps:
  - id: intro
    title: Welcome
    detail: This takes a few minutes.
  - id: age
    title: How old are you?
    input:
      type: integer
    rules:
      - op: lt
        value: 18
        skip_to: minor
      - op: always
        skip_to: habits
  - id: minor
    type: completion
    title: Thanks
  - id: habits
    steps:
      - id: smoker
        title: Do you smoke?
        input:
          single_choice: true
          choices:
            - text: "Yes"
              value: true
            - text: "No"
              value: false
        rules:
          - value: false
            skip_to: exit
      - id: amount
        input:
          optional: true
          skip_text: Rather not say
          choices: [few, some, many]
          other: Something else
        buttons:
          goForward: Next
          pause:
            hidden: true
  - id: mood
    input:
      min: 1
      max: 5
      min_label: bad
      max_label: great
  - id: done
    type: completion
    hide: [goBackward]
`

func TestDecode(t *testing.T) {
	a, err := definition.Decode([]byte(survey))
	require.NoError(t, err)

	assert.Equal(t, "survey", a.Identifier)
	assert.Equal(t, domain.KindAssessment, a.Kind)
	assert.Equal(t, "2.1", a.Version)
	assert.Equal(t, 4, a.EstimatedMinutes)

	g, err := graph.New(a)
	require.NoError(t, err)

	t.Run("kinds are inferred", func(t *testing.T) {
		intro, _ := g.Lookup(graph.Path{"intro"})
		assert.Equal(t, domain.KindInstruction, intro.Kind)
		habits, _ := g.Lookup(graph.Path{"habits"})
		assert.Equal(t, domain.KindSection, habits.Kind)
		age, _ := g.Lookup(graph.Path{"age"})
		assert.Equal(t, domain.KindQuestion, age.Kind)
	})

	t.Run("rules", func(t *testing.T) {
		age, _ := g.Lookup(graph.Path{"age"})
		require.Len(t, age.SurveyRules, 2)
		assert.Equal(t, domain.OpLessThan, age.SurveyRules[0].Operator)
		assert.True(t, age.SurveyRules[0].MatchingValue.Equal(domain.Int(18)))
		assert.Equal(t, domain.OpSkip, age.SurveyRules[1].Operator)
		assert.Nil(t, age.SurveyRules[1].MatchingValue)

		smoker, _ := g.Lookup(graph.Path{"habits", "smoker"})
		assert.Equal(t, domain.OpEqual, smoker.SurveyRules[0].Operator)
		assert.Equal(t, domain.ExitBranch, smoker.SurveyRules[0].SkipTo)
	})

	t.Run("choice inputs", func(t *testing.T) {
		smoker, _ := g.Lookup(graph.Path{"habits", "smoker"})
		assert.Equal(t, domain.AnswerType{Kind: domain.AnswerBoolean}, smoker.Input.AnswerType)
		assert.Equal(t, domain.InputChoice, smoker.Input.Style)

		amount, _ := g.Lookup(graph.Path{"habits", "amount"})
		assert.Equal(t, domain.AnswerType{Kind: domain.AnswerArray, BaseType: domain.AnswerString}, amount.Input.AnswerType)
		assert.True(t, amount.Input.Optional)
		assert.Equal(t, "Rather not say", amount.Input.SkipText)
		assert.True(t, amount.Input.AllowsOther())
		require.Len(t, amount.Input.Choices, 3)
		assert.True(t, amount.Input.Choices[1].Value.Equal(domain.String("some")))
	})

	t.Run("likert", func(t *testing.T) {
		mood, _ := g.Lookup(graph.Path{"mood"})
		assert.Equal(t, domain.InputLikert, mood.Input.Style)
		assert.Equal(t, domain.AnswerInteger, mood.Input.AnswerType.Kind)
		assert.Equal(t, "great", mood.Input.MaxLabel)
	})

	t.Run("buttons", func(t *testing.T) {
		amount, _ := g.Lookup(graph.Path{"habits", "amount"})
		assert.Equal(t, "Next", amount.Buttons[domain.ActionGoForward].Title)
		assert.True(t, amount.IsHidden(domain.ActionPause))

		done, _ := g.Lookup(graph.Path{"done"})
		assert.True(t, done.IsHidden(domain.ActionGoBackward))
	})
}

func TestDecode_JSON(t *testing.T) {
	a, err := definition.Decode([]byte(`{
		"id": "quiz",
		"steps": [
			{"id": "q1", "type": "question", "input": {"type": "[int]"}},
			{"id": "t", "type": "task", "steps": [{"id": "inner"}]},
			{"id": "widget", "type": "custom", "custom_type": "map", "payload": {"zoom": 3}}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, a.Children, 3)
	assert.Equal(t, domain.AnswerType{Kind: domain.AnswerArray, BaseType: domain.AnswerInteger}, a.Children[0].Input.AnswerType)
	assert.Equal(t, domain.KindAssessment, a.Children[1].Kind)
	assert.Equal(t, "map", a.Children[2].CustomType)
	assert.EqualValues(t, 3, a.Children[2].Payload["zoom"])
}

func TestDecode_Question_DefaultsToFreeText(t *testing.T) {
	a, err := definition.Decode([]byte("id: a\nsteps:\n  - id: q\n    type: question\n"))
	require.NoError(t, err)
	require.NotNil(t, a.Children[0].Input)
	assert.Equal(t, domain.AnswerString, a.Children[0].Input.AnswerType.Kind)
	assert.False(t, a.Children[0].Input.Optional)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		path string
	}{
		{"missing id", "title: x", ""},
		{"unknown key", "id: a\ncolour: red", ""},
		{"root type", "id: a\ntype: section", "a"},
		{"step without id", "id: a\nsteps:\n  - title: x", "a"},
		{"slash in id", "id: a\nsteps:\n  - id: x/y", "a/x/y"},
		{"reserved id", "id: a\nsteps:\n  - id: exit", "a/exit"},
		{"unknown type", "id: a\nsteps:\n  - id: x\n    type: slider", "a/x"},
		{"leaf with steps", "id: a\nsteps:\n  - id: x\n    type: instruction\n    steps:\n      - id: y", "a/x"},
		{"branch with input", "id: a\nsteps:\n  - id: x\n    type: section\n    input: {type: string}", "a/x"},
		{"custom without type", "id: a\nsteps:\n  - id: x\n    type: custom", "a/x"},
		{"bad operator", "id: a\nsteps:\n  - id: x\n    rules:\n      - op: between\n        skip_to: y", "a/x"},
		{"rule without target", "id: a\nsteps:\n  - id: x\n    rules:\n      - op: eq\n        value: 1", "a/x"},
		{"bad answer type", "id: a\nsteps:\n  - id: x\n    input: {type: date}", "a/x"},
		{"empty likert", "id: a\nsteps:\n  - id: x\n    input: {style: likert, min: 3, max: 3}", "a/x"},
		{"choice without choices", "id: a\nsteps:\n  - id: x\n    input: {style: choice}", "a/x"},
		{"bad choice", "id: a\nsteps:\n  - id: x\n    input:\n      choices: [[1]]", "a/x"},
		{"bad button", "id: a\nsteps:\n  - id: x\n    buttons:\n      skip: [1]", "a/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := definition.Decode([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, definition.ErrInvalidDefinition)

			var derr *definition.Error
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tt.path, derr.Path)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	_, err := definition.Decode([]byte("id: [unterminated"))
	assert.ErrorIs(t, err, definition.ErrInvalidDefinition)

	_, err = definition.Decode(nil)
	assert.ErrorIs(t, err, definition.ErrInvalidDefinition)
}
