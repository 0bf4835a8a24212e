package dsl_test

import (
	"context"
	"testing"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_NestedAssessment(t *testing.T) {
	b := dsl.New("mood").Version("1.0.0").Title("Daily mood").EstimatedMinutes(3)

	b.Instruction("intro").Title("Welcome")
	b.Question("happy", domain.AnswerBoolean).
		Title("Are you happy?").
		SkipIf(false, "why").
		Button(domain.ActionGoForward, "Next")
	sec := b.Section("why").Title("Tell us more")
	sec.Question("reason", domain.AnswerString).Optional().SkipText("Rather not say")
	b.Completion("done").Hide(domain.ActionGoBackward)

	a, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "mood", a.Identifier)
	assert.Equal(t, domain.KindAssessment, a.Kind)
	assert.Equal(t, "1.0.0", a.Version)
	assert.Equal(t, 3, a.EstimatedMinutes)
	require.Len(t, a.Children, 4)

	happy := a.Children[1]
	require.Len(t, happy.SurveyRules, 1)
	assert.Equal(t, "why", happy.SurveyRules[0].SkipTo)
	assert.True(t, happy.SurveyRules[0].MatchingValue.Equal(domain.Bool(false)))
	assert.Equal(t, "Next", happy.Buttons[domain.ActionGoForward].Title)

	why := a.Children[2]
	assert.Equal(t, domain.KindSection, why.Kind)
	require.Len(t, why.Children, 1)
	assert.True(t, why.Children[0].IsOptional())
	assert.Equal(t, "Rather not say", why.Children[0].Input.SkipText)

	assert.True(t, a.Children[3].IsHidden(domain.ActionGoBackward))
}

func TestBuilder_ChoicesAndLikert(t *testing.T) {
	b := dsl.New("prefs")
	b.Question("fruit", domain.AnswerString).Choices(false,
		domain.Choice{Text: "Apple", Value: domain.String("apple")},
		domain.Choice{Text: "None", Value: domain.String("none"), Exclusive: true},
	).Other("Something else")
	b.Question("scale", domain.AnswerInteger).Likert(1, 7, "Low", "High")

	a := b.MustBuild()

	fruit := a.Children[0].Input
	assert.Equal(t, domain.InputChoice, fruit.Style)
	assert.Equal(t, domain.AnswerArray, fruit.AnswerType.Kind)
	assert.Equal(t, domain.AnswerString, fruit.AnswerType.BaseType)
	assert.True(t, fruit.AllowsOther())

	scale := a.Children[1].Input
	assert.Equal(t, 1, scale.Min)
	assert.Equal(t, 7, scale.Max)
}

func TestBuilder_InvalidRuleValue(t *testing.T) {
	b := dsl.New("bad")
	b.Question("q", domain.AnswerString).Rule(domain.OpEqual, struct{}{}, "x")

	_, err := b.Build()
	assert.Error(t, err)
}

func TestBuilder_Loader(t *testing.T) {
	b := dsl.New("simple")
	b.Instruction("only")

	loader, err := b.Loader()
	require.NoError(t, err)

	ids, err := loader.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"simple"}, ids)
}
