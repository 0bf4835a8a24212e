/*
Package dsl provides a fluent builder for assessment definitions.

It lets tests and applications describe step graphs in Go instead of YAML or
JSON documents. Branches nest naturally through Section.

Example usage:

	b := dsl.New("mood").Version("1.0.0").Title("Daily mood")

	b.Instruction("intro").Title("Welcome")

	b.Question("happy", domain.AnswerBoolean).
		Title("Are you happy today?").
		SkipIf(false, "why")

	b.Question("score", domain.AnswerInteger).
		Title("Rate your day").
		Likert(1, 5, "Bad", "Great")

	sec := b.Section("why").Title("Tell us more")
	sec.Question("reason", domain.AnswerString).Optional()

	b.Completion("done").Title("Thanks!")

	assessment, err := b.Build()
*/
package dsl
