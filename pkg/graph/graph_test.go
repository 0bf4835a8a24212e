package graph_test

import (
	"errors"
	"testing"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/dsl"
	"github.com/aretw0/quire/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nested(t *testing.T) *graph.Graph {
	t.Helper()
	b := dsl.New("root")
	b.Question("A", domain.AnswerInteger)
	sec := b.Section("S")
	sec.Question("A", domain.AnswerInteger)
	inner := sec.Section("T")
	inner.Instruction("deep")
	sec.Instruction("after")
	b.Completion("end")

	g, err := graph.New(b.MustBuild())
	require.NoError(t, err)
	return g
}

func TestGraph_LookupAndPosition(t *testing.T) {
	g := nested(t)

	n, err := g.Lookup(graph.Path{"S", "T", "deep"})
	require.NoError(t, err)
	assert.Equal(t, domain.KindInstruction, n.Kind)

	idx, total, err := g.Position(graph.Path{"S", "after"})
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 3, total)

	parent, err := g.Parent(graph.Path{"S", "T"})
	require.NoError(t, err)
	assert.Equal(t, "S", parent.Identifier)

	children, err := g.Children(nil)
	require.NoError(t, err)
	assert.Len(t, children, 3)
}

func TestGraph_UnknownIdentifier(t *testing.T) {
	g := nested(t)

	_, err := g.Lookup(graph.Path{"S", "missing"})
	var gerr *domain.GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, domain.CodeUnknownIdentifier, gerr.Code)
	assert.Equal(t, "missing", gerr.Identifier)
	assert.True(t, errors.Is(err, domain.ErrUnknownIdentifier))
}

func TestGraph_IdentifiersScopedToParent(t *testing.T) {
	g := nested(t)

	assert.Len(t, g.PathsOf("A"), 2)
	assert.True(t, g.Contains("deep"))
	assert.True(t, g.Contains("root"))
	assert.False(t, g.Contains("nope"))
}

func TestGraph_Resolve(t *testing.T) {
	g := nested(t)

	p, err := g.Resolve(graph.Path{"S", "T"}, "after")
	require.NoError(t, err)
	assert.Equal(t, graph.Path{"S", "after"}, p)

	p, err = g.Resolve(graph.Path{"S", "T"}, "end")
	require.NoError(t, err)
	assert.Equal(t, graph.Path{"end"}, p)

	p, err = g.Resolve(graph.Path{"S"}, "A")
	require.NoError(t, err)
	assert.Equal(t, graph.Path{"S", "A"}, p, "the nearest scope wins")

	_, err = g.Resolve(graph.Path{"S"}, "deep")
	assert.ErrorIs(t, err, domain.ErrUnknownIdentifier)
}

func TestGraph_IsAncestor(t *testing.T) {
	g := nested(t)
	p := graph.Path{"S", "T", "deep"}

	assert.True(t, g.IsAncestor(p, "S"))
	assert.True(t, g.IsAncestor(p, "T"))
	assert.True(t, g.IsAncestor(p, "root"))
	assert.False(t, g.IsAncestor(p, "deep"))
	assert.False(t, g.IsAncestor(p, "end"))
}

func TestGraph_RejectsDuplicates(t *testing.T) {
	b := dsl.New("dup")
	b.Instruction("x")
	b.Instruction("x")

	_, err := graph.New(b.MustBuild())
	assert.ErrorIs(t, err, graph.ErrInvalidDefinition)
}

func TestGraph_RejectsLeafWithChildren(t *testing.T) {
	a := &domain.Assessment{Node: domain.Node{
		Identifier: "bad",
		Children: []domain.Node{{
			Identifier: "leaf",
			Kind:       domain.KindInstruction,
			Children:   []domain.Node{{Identifier: "x", Kind: domain.KindInstruction}},
		}},
	}}
	_, err := graph.New(a)
	assert.ErrorIs(t, err, graph.ErrInvalidDefinition)
}

func TestGraph_IsolatedFromDefinition(t *testing.T) {
	a := dsl.New("iso")
	a.Instruction("one").Title("before")
	def := a.MustBuild()

	g, err := graph.New(def)
	require.NoError(t, err)
	def.Children[0].Title = "after"

	n, err := g.Lookup(graph.Path{"one"})
	require.NoError(t, err)
	assert.Equal(t, "before", n.Title)
}

func TestGraph_Walk(t *testing.T) {
	g := nested(t)
	var seen []string
	require.NoError(t, g.Walk(func(p graph.Path, n *domain.Node) error {
		seen = append(seen, p.String())
		return nil
	}))
	assert.Equal(t, []string{"A", "S", "S/A", "S/T", "S/T/deep", "S/after", "end"}, seen)
}

func TestGraph_IsAncestorResolvesSiblingsFirst(t *testing.T) {
	b := dsl.New("root")
	intro := b.Section("intro")
	intro.Instruction("welcome")
	intro.Instruction("intro")
	b.Instruction("root")

	g, err := graph.New(b.MustBuild())
	require.NoError(t, err)

	assert.False(t, g.IsAncestor(graph.Path{"intro", "welcome"}, "intro"), "resolves to the sibling step")
	assert.False(t, g.IsAncestor(graph.Path{"intro", "welcome"}, "root"), "resolves to the top-level step")
	assert.Empty(t, g.Validate())
}
