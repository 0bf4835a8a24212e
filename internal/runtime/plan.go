package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/graph"
	"github.com/aretw0/quire/pkg/rules"
)

type opKind int

const (
	opCompleteLeaf opKind = iota // stamp the current leaf's result
	opExitScope                  // stamp the innermost branch result and pop it
	opEnter                      // record a visit in the innermost scope
	opFinish                     // root exhausted
	opDropTail                   // remove the innermost scope's last entry
	opPop                        // pop the innermost scope without stamping
	opReopen                     // clear the end stamp of the innermost scope's last entry
)

type op struct {
	kind opKind
	node *domain.Node
}

// frame mirrors a scope during planning. n is the simulated history length.
type frame struct {
	path   graph.Path
	node   *domain.Node
	result *domain.CollectionResult
	n      int
}

// planner computes a transition without touching the result tree.
type planner struct {
	nav    *Navigator
	frames []frame
	ops    []op
}

func (p *planner) top() int { return len(p.frames) - 1 }

func (p *planner) push(o op) { p.ops = append(p.ops, o) }

// forward plans leaving leaf with the given answer.
func (p *planner) forward(ctx context.Context, leaf *domain.Node, answer *domain.Value) error {
	level := p.top()
	idx := p.frames[level].node.ChildIndex(leaf.Identifier)
	leafPath := p.frames[level].path.Child(leaf.Identifier)
	p.push(op{kind: opCompleteLeaf, node: leaf})

	d := p.nav.evaluate(leaf, answer)
	switch d.Kind {
	case rules.Exit:
		p.nav.emitRule(ctx, p.nav.hooks.OnRuleMatched, domain.EventRuleMatched, leaf, d, nil)
		return p.exitBranch(level)

	case rules.GoTo:
		if err := p.checkTarget(leafPath, d.Target); err != nil {
			// Recoverable: degrade to linear advance.
			p.nav.logger.WarnContext(ctx, "rule target rejected", "node", leafPath.String(), "target", d.Target, "error", err)
			p.nav.emitRule(ctx, p.nav.hooks.OnInvalidTarget, domain.EventInvalidTarget, leaf, d, err)
			return p.linear(level, idx)
		}
		if err := p.jump(ctx, level, d.Target); err != nil {
			return err
		}
		p.nav.emitRule(ctx, p.nav.hooks.OnRuleMatched, domain.EventRuleMatched, leaf, d, nil)
		return nil
	}
	return p.linear(level, idx)
}

func (p *planner) checkTarget(from graph.Path, target string) error {
	if target == from.Last() {
		return &domain.NavigatorError{Code: domain.CodeInvalidTarget, Identifier: target, From: from.String(), Reason: "rule targets its own step"}
	}
	if p.nav.graph.IsAncestor(from, target) {
		return &domain.NavigatorError{Code: domain.CodeInvalidTarget, Identifier: target, From: from.String(), Reason: "rule targets an ancestor"}
	}
	return nil
}

// jump searches the target in the current scope, then in each parent scope.
func (p *planner) jump(ctx context.Context, level int, target string) error {
	for l := level; l >= 0; l-- {
		ci := p.frames[l].node.ChildIndex(target)
		if ci < 0 {
			continue
		}
		for k := level; k > l; k-- {
			p.exitScope()
		}
		return p.enter(l, ci)
	}
	if !p.nav.graph.Contains(target) {
		return &domain.GraphError{Code: domain.CodeUnknownIdentifier, Identifier: target, Scope: p.frames[level].path.String()}
	}
	p.nav.logger.DebugContext(ctx, "rule target unreachable, exiting branch", "target", target, "scope", p.frames[level].path.String())
	return p.exitBranch(level)
}

// linear advances past child index idx of the scope at level.
func (p *planner) linear(level, idx int) error {
	for {
		f := p.frames[level]
		if idx+1 < len(f.node.Children) {
			return p.enter(level, idx+1)
		}
		if level == 0 {
			p.push(op{kind: opFinish})
			return nil
		}
		p.exitScope()
		level--
		idx = p.frames[level].node.ChildIndex(f.node.Identifier)
	}
}

// exitBranch leaves the scope at level and continues after its branch node.
func (p *planner) exitBranch(level int) error {
	if level == 0 {
		p.push(op{kind: opFinish})
		return nil
	}
	branch := p.frames[level].node
	p.exitScope()
	return p.linear(level-1, p.frames[level-1].node.ChildIndex(branch.Identifier))
}

func (p *planner) exitScope() {
	p.push(op{kind: opExitScope})
	p.frames = p.frames[:p.top()]
}

// enter visits child ci of the scope at level, descending into branches until a leaf.
func (p *planner) enter(level, ci int) error {
	for {
		f := p.frames[level]
		child := &f.node.Children[ci]
		p.push(op{kind: opEnter, node: child})
		if !child.IsBranch() {
			return nil
		}
		p.frames = append(p.frames, frame{path: f.path.Child(child.Identifier), node: child})
		level++
		if len(child.Children) == 0 {
			p.exitScope()
			level--
			return p.linear(level, ci)
		}
		ci = 0
	}
}

// backward plans one step back through history. It returns the landing leaf.
func (p *planner) backward() (*domain.Node, error) {
	level := p.top()
	for {
		f := &p.frames[level]
		if f.n <= 1 {
			if level == 0 {
				return nil, &domain.NavigatorError{Code: domain.CodeExhausted, Reason: "no earlier step"}
			}
			p.push(op{kind: opDropTail})
			p.push(op{kind: opPop})
			p.frames = p.frames[:level]
			level--
			continue
		}
		p.push(op{kind: opDropTail})
		f.n--

		landed, newLevel, err := p.reopenTail(level)
		if err != nil {
			return nil, err
		}
		if landed != nil {
			return landed, nil
		}
		// The reopened tail is an empty branch; keep walking back from it.
		level = newLevel
	}
}

// reopenTail reopens the last entry at level and descends to its last leaf.
// A nil node means an empty branch was reached at the returned level.
func (p *planner) reopenTail(level int) (*domain.Node, int, error) {
	for {
		f := p.frames[level]
		entry := f.result.At(f.n - 1)
		if entry == nil {
			return nil, level, fmt.Errorf("scope %q: missing history entry %d", f.path.String(), f.n-1)
		}
		node, ok := f.node.Child(entry.ResultIdentifier())
		if !ok {
			return nil, level, &domain.GraphError{Code: domain.CodeUnknownIdentifier, Identifier: entry.ResultIdentifier(), Scope: f.path.String()}
		}
		if !node.IsBranch() {
			p.push(op{kind: opReopen, node: node})
			return node, level, nil
		}
		br, ok := entry.(domain.BranchNodeResult)
		if !ok {
			return nil, level, fmt.Errorf("scope %q: %q is a branch but recorded %s", f.path.String(), node.Identifier, entry.ResultType())
		}
		c := br.Collection()
		if c.Len() == 0 {
			return nil, level, nil
		}
		p.push(op{kind: opReopen, node: node})
		p.frames = append(p.frames, frame{path: f.path.Child(node.Identifier), node: node, result: c, n: c.Len()})
		level++
	}
}
