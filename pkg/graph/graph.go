// Package graph indexes an assessment definition for navigation.
//
// Identifiers are only unique among siblings, so nodes are addressed by their
// identifier path from the root (the root itself is the empty path).
package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/quire/pkg/domain"
)

// ErrInvalidDefinition is returned when an assessment cannot be indexed.
var ErrInvalidDefinition = errors.New("invalid definition")

// Path addresses a node by the identifiers from the root down.
type Path []string

func (p Path) String() string {
	return strings.Join(p, "/")
}

// Parent returns the enclosing path. The root's parent is the root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// Child returns a new path one level down.
func (p Path) Child(identifier string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, identifier)
}

// Last returns the final identifier, or "" for the root.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

type entry struct {
	node  *domain.Node
	index int
}

// Graph is the read-only step graph of one assessment.
type Graph struct {
	assessment *domain.Assessment
	index      map[string]entry
	byID       map[string][]Path
}

// New indexes a deep copy of the assessment.
func New(a *domain.Assessment) (*Graph, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil assessment", ErrInvalidDefinition)
	}
	if a.Identifier == "" {
		return nil, fmt.Errorf("%w: assessment has no identifier", ErrInvalidDefinition)
	}
	g := &Graph{
		assessment: a.Clone(),
		index:      make(map[string]entry),
		byID:       make(map[string][]Path),
	}
	g.assessment.Kind = domain.KindAssessment
	root := &g.assessment.Node
	g.index[""] = entry{node: root, index: 0}
	if err := g.indexChildren(nil, root); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) indexChildren(p Path, parent *domain.Node) error {
	seen := make(map[string]bool, len(parent.Children))
	for i := range parent.Children {
		child := &parent.Children[i]
		if child.Identifier == "" {
			return fmt.Errorf("%w: child %d of %q has no identifier", ErrInvalidDefinition, i, parent.Identifier)
		}
		if strings.Contains(child.Identifier, "/") {
			return fmt.Errorf("%w: identifier %q contains \"/\"", ErrInvalidDefinition, child.Identifier)
		}
		if child.Identifier == domain.ExitBranch {
			return fmt.Errorf("%w: %q is reserved", ErrInvalidDefinition, domain.ExitBranch)
		}
		if seen[child.Identifier] {
			return fmt.Errorf("%w: duplicate identifier %q in %q", ErrInvalidDefinition, child.Identifier, parent.Identifier)
		}
		seen[child.Identifier] = true
		if !child.Kind.Valid() {
			return fmt.Errorf("%w: node %q has unknown type %q", ErrInvalidDefinition, child.Identifier, child.Kind)
		}
		if !child.IsBranch() && len(child.Children) > 0 {
			return fmt.Errorf("%w: %s node %q cannot have steps", ErrInvalidDefinition, child.Kind, child.Identifier)
		}

		cp := p.Child(child.Identifier)
		g.index[cp.String()] = entry{node: child, index: i}
		g.byID[child.Identifier] = append(g.byID[child.Identifier], cp)
		if err := g.indexChildren(cp, child); err != nil {
			return err
		}
	}
	return nil
}

// Assessment returns the indexed definition. Callers must not mutate it.
func (g *Graph) Assessment() *domain.Assessment {
	return g.assessment
}

// Root returns the root branch node.
func (g *Graph) Root() *domain.Node {
	return &g.assessment.Node
}

// Lookup returns the node at p.
func (g *Graph) Lookup(p Path) (*domain.Node, error) {
	e, ok := g.index[p.String()]
	if !ok {
		return nil, &domain.GraphError{Code: domain.CodeUnknownIdentifier, Identifier: p.Last(), Scope: p.Parent().String()}
	}
	return e.node, nil
}

// Children returns the ordered children of the branch at p.
func (g *Graph) Children(p Path) ([]domain.Node, error) {
	n, err := g.Lookup(p)
	if err != nil {
		return nil, err
	}
	return n.Children, nil
}

// Parent returns the branch that owns the node at p.
func (g *Graph) Parent(p Path) (*domain.Node, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("root has no parent")
	}
	if _, err := g.Lookup(p); err != nil {
		return nil, err
	}
	return g.Lookup(p.Parent())
}

// Position returns the index of the node at p among its siblings and the sibling count.
func (g *Graph) Position(p Path) (index, total int, err error) {
	e, ok := g.index[p.String()]
	if !ok {
		return 0, 0, &domain.GraphError{Code: domain.CodeUnknownIdentifier, Identifier: p.Last(), Scope: p.Parent().String()}
	}
	if len(p) == 0 {
		return 0, 1, nil
	}
	parent := g.index[p.Parent().String()]
	return e.index, len(parent.node.Children), nil
}

// Contains reports whether the identifier names any node.
func (g *Graph) Contains(identifier string) bool {
	return len(g.byID[identifier]) > 0 || identifier == g.assessment.Identifier
}

// PathsOf returns every path whose last identifier matches.
func (g *Graph) PathsOf(identifier string) []Path {
	return append([]Path(nil), g.byID[identifier]...)
}

// IsAncestor reports whether identifier, resolved from the scope of the node
// at p (see Resolve), names a branch enclosing p. An identifier that resolves
// nowhere is an ancestor only when it names the root.
func (g *Graph) IsAncestor(p Path, identifier string) bool {
	t, err := g.Resolve(p.Parent(), identifier)
	if err != nil {
		return identifier == g.assessment.Identifier
	}
	return len(t) < len(p) && slices.Equal(t, p[:len(t)])
}

// Resolve finds identifier among the children of scope, then among the
// children of each enclosing scope. It returns the resolved path.
func (g *Graph) Resolve(scope Path, identifier string) (Path, error) {
	for s := scope; ; s = s.Parent() {
		n, err := g.Lookup(s)
		if err != nil {
			return nil, err
		}
		if n.ChildIndex(identifier) >= 0 {
			return s.Child(identifier), nil
		}
		if len(s) == 0 {
			break
		}
	}
	return nil, &domain.GraphError{Code: domain.CodeUnknownIdentifier, Identifier: identifier, Scope: scope.String()}
}

// WalkFunc is called for every node below the root in declared order.
type WalkFunc func(p Path, n *domain.Node) error

// Walk visits the graph depth-first.
func (g *Graph) Walk(fn WalkFunc) error {
	return walk(nil, g.Root(), fn)
}

func walk(p Path, parent *domain.Node, fn WalkFunc) error {
	for i := range parent.Children {
		child := &parent.Children[i]
		cp := p.Child(child.Identifier)
		if err := fn(cp, child); err != nil {
			return err
		}
		if child.IsBranch() {
			if err := walk(cp, child, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
