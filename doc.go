/*
Package quire presents multi-step assessments (surveys, questionnaires,
cognitive tests) to a respondent and assembles a typed, hierarchical result
tree that stays consistent across backtracking, skipping, pause and resume.

# Concept

An assessment is a tree of steps: instructions, questions, completion
steps, sections and nested tasks. Survey rules on a step redirect
navigation based on its answer. Every visit appends to the result tree;
going back and changing an answer truncates what came after, so the tree
always reflects the path the respondent actually took.

The core (pkg/graph, pkg/rules, pkg/session) never performs I/O itself:
definitions arrive through a ports.DefinitionLoader and snapshots leave
through a ports.StateStore. The Engine in this package wires both together
and is what the HTTP and MCP transports and the CLI drive.

# Usage

	eng, err := quire.New("./assessments",
		quire.WithStore(file.New(".quire/sessions")),
	)
	if err != nil {
		log.Fatal(err)
	}

	view, err := eng.Start(ctx, "intake", "")
	if err != nil {
		log.Fatal(err)
	}
	view, err = eng.Answer(ctx, view.SessionID, domain.Int(42))
	view, err = eng.Perform(ctx, view.SessionID, domain.ActionGoForward)

Definitions can also be built in Go with pkg/dsl and served from memory:

	b := dsl.New("quiz")
	b.Question("age", domain.AnswerInteger).SkipIf(17, "minor")
	b.Completion("minor")
	loader, err := b.Loader()
	eng, err := quire.New("", quire.WithLoader(loader))
*/
package quire
