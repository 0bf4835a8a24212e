// Package runtime implements the assessment navigator: a stateful traversal of
// the step graph that keeps the result tree in step with the respondent's path.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/graph"
	"github.com/aretw0/quire/pkg/rules"
)

// Outcome is the result of a navigation call: a node to present, or Terminal.
type Outcome struct {
	Node     *domain.Node
	Path     graph.Path
	Terminal bool
	// Status is the terminal reason, or StatusActive.
	Status domain.ExecutionStatus
}

// scope is one active branch: its node and the result that records its children.
type scope struct {
	path   graph.Path
	node   *domain.Node
	result *domain.CollectionResult
}

// Navigator walks one run of an assessment. It is not safe for concurrent
// navigation; callers serialize access (see session.Session). Async results may
// be written to the tree concurrently.
type Navigator struct {
	graph     *graph.Graph
	evaluate  rules.Evaluator
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	now       func() time.Time
	sessionID string

	result  *domain.AssessmentResult
	scopes  []scope
	current *domain.Node
	status  domain.ExecutionStatus
}

// NewNavigator creates a navigator over g.
func NewNavigator(g *graph.Graph, opts ...Option) *Navigator {
	n := &Navigator{graph: g}
	defaults(n)
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Graph returns the step graph.
func (n *Navigator) Graph() *graph.Graph { return n.graph }

// Result returns the live result tree. Callers must not mutate it.
func (n *Navigator) Result() *domain.AssessmentResult { return n.result }

// Current returns the node being presented, or nil when terminal.
func (n *Navigator) Current() *domain.Node { return n.current }

// Terminal reports whether the run has ended.
func (n *Navigator) Terminal() bool { return n.status.Terminal() }

// Status returns the navigator's lifecycle status.
func (n *Navigator) Status() domain.ExecutionStatus { return n.status }

// CurrentPath returns the identifier path of the current node.
func (n *Navigator) CurrentPath() graph.Path {
	if n.current == nil || len(n.scopes) == 0 {
		return nil
	}
	return n.scopes[len(n.scopes)-1].path.Child(n.current.Identifier)
}

// CurrentResult returns the in-progress result of the current node.
func (n *Navigator) CurrentResult() domain.Result {
	if n.current == nil || len(n.scopes) == 0 {
		return nil
	}
	return n.scopes[len(n.scopes)-1].result.Last()
}

// Scope returns the result of the innermost active branch.
func (n *Navigator) Scope() *domain.CollectionResult {
	if len(n.scopes) == 0 {
		return nil
	}
	return n.scopes[len(n.scopes)-1].result
}

// Answer returns the recorded answer of the current node, if any.
func (n *Navigator) Answer() *domain.Value {
	if a, ok := n.CurrentResult().(*domain.AnswerResult); ok {
		return a.Value
	}
	return nil
}

// IsHidden reports whether action is hidden on the current node. A branch that
// hides an action hides it on every step below it, unless the step declares its
// own descriptor for that action.
func (n *Navigator) IsHidden(action domain.ButtonAction) bool {
	if n.current == nil {
		return true
	}
	if n.current.IsHidden(action) {
		return true
	}
	if _, ok := n.current.Buttons[action]; ok {
		return false
	}
	for _, s := range n.scopes {
		if s.node.IsHidden(action) {
			return true
		}
	}
	return false
}

// CanPause is true unless the current node, or a branch enclosing it, hides the pause button.
func (n *Navigator) CanPause() bool {
	return !n.IsHidden(domain.ActionPause)
}

// Progress returns the current node's index and the number of siblings in its scope.
func (n *Navigator) Progress() (index, total int) {
	if n.current == nil {
		return 0, 0
	}
	top := n.scopes[len(n.scopes)-1]
	return top.node.ChildIndex(n.current.Identifier), len(top.node.Children)
}

// Start begins a fresh run recorded into result, which must have an empty history.
func (n *Navigator) Start(ctx context.Context, result *domain.AssessmentResult) (Outcome, error) {
	if result == nil {
		return Outcome{}, errors.New("nil result")
	}
	if result.Len() > 0 {
		return Outcome{}, fmt.Errorf("result %q already has history", result.Identifier)
	}
	root := n.graph.Root()
	if result.Identifier != root.Identifier {
		return Outcome{}, fmt.Errorf("result %q does not belong to assessment %q", result.Identifier, root.Identifier)
	}

	frames := []frame{{path: nil, node: root, result: &result.CollectionResult}}
	p := &planner{nav: n, frames: frames}
	if err := p.linear(0, -1); err != nil {
		return Outcome{}, err
	}

	n.result = result
	if result.StartDate.IsZero() {
		result.SetStart(n.now())
	}
	n.scopes = []scope{{path: nil, node: root, result: &result.CollectionResult}}
	n.current = nil
	n.status = domain.StatusActive
	return n.apply(ctx, p.ops, domain.DirectionForward), nil
}

// GoForward leaves the current node and moves to the next one chosen by the
// survey rules or by declared order. Unknown rule targets fail without mutation.
func (n *Navigator) GoForward(ctx context.Context) (Outcome, error) {
	if n.Terminal() {
		return n.outcome(), domain.ErrTerminated
	}
	if n.current == nil {
		return Outcome{}, errors.New("navigator not started")
	}

	p := &planner{nav: n, frames: n.frames()}
	if err := p.forward(ctx, n.current, n.Answer()); err != nil {
		return Outcome{}, err
	}
	return n.apply(ctx, p.ops, domain.DirectionForward), nil
}

// GoBackward returns to the previously visited node by replaying history.
// Rules are not evaluated. With no history left it returns Terminal(exited).
func (n *Navigator) GoBackward(ctx context.Context) (Outcome, error) {
	if n.Terminal() {
		return n.outcome(), domain.ErrTerminated
	}
	if n.current == nil {
		return Outcome{}, errors.New("navigator not started")
	}

	p := &planner{nav: n, frames: n.frames()}
	_, err := p.backward()
	var navErr *domain.NavigatorError
	if errors.As(err, &navErr) && navErr.Code == domain.CodeExhausted {
		n.logger.DebugContext(ctx, "backward navigation exhausted", "node", n.current.Identifier)
		return n.Terminate(ctx, domain.StatusExited), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	return n.apply(ctx, p.ops, domain.DirectionBackward), nil
}

// GoBackTo walks history backward until match accepts the landing node.
// If no visited node matches, nothing changes and ErrNoInstructions is returned.
func (n *Navigator) GoBackTo(ctx context.Context, match func(*domain.Node) bool) (Outcome, error) {
	if n.Terminal() {
		return n.outcome(), domain.ErrTerminated
	}
	if n.current == nil {
		return Outcome{}, errors.New("navigator not started")
	}

	p := &planner{nav: n, frames: n.frames()}
	for {
		landed, err := p.backward()
		if errors.Is(err, domain.ErrExhausted) {
			return Outcome{}, domain.ErrNoInstructions
		}
		if err != nil {
			return Outcome{}, err
		}
		if match(landed) {
			break
		}
	}
	return n.apply(ctx, p.ops, domain.DirectionBackward), nil
}

// Terminate ends the run immediately, stamping the root end date. The current
// node's result is left as recorded.
func (n *Navigator) Terminate(ctx context.Context, status domain.ExecutionStatus) Outcome {
	if n.Terminal() {
		return n.outcome()
	}
	if n.result != nil && n.result.EndDate.IsZero() {
		n.result.SetEnd(n.stamp())
	}
	n.current = nil
	n.status = status
	n.emitRun(ctx, n.hooks.OnRunFinished, domain.EventRunFinished)
	n.logger.DebugContext(ctx, "run terminated", "status", status)
	return n.outcome()
}

func (n *Navigator) outcome() Outcome {
	if n.Terminal() {
		return Outcome{Terminal: true, Status: n.status}
	}
	return Outcome{Node: n.current, Path: n.CurrentPath(), Status: domain.StatusActive}
}

func (n *Navigator) frames() []frame {
	out := make([]frame, len(n.scopes))
	for i, s := range n.scopes {
		out[i] = frame{path: s.path, node: s.node, result: s.result, n: s.result.Len()}
	}
	return out
}

// stamp returns the clock reading, never earlier than the run start.
func (n *Navigator) stamp() time.Time {
	t := n.now()
	if n.result != nil && t.Before(n.result.StartDate) {
		return n.result.StartDate
	}
	return t
}

// apply commits a plan. Plans are built against the immutable graph and
// a snapshot of scope lengths, so applying cannot fail.
func (n *Navigator) apply(ctx context.Context, ops []op, dir domain.Direction) Outcome {
	for _, o := range ops {
		switch o.kind {
		case opCompleteLeaf:
			top := n.scopes[len(n.scopes)-1]
			if r := top.result.Last(); r != nil {
				r.SetEnd(n.stamp())
			}
			n.emitNode(ctx, n.hooks.OnNodeLeave, domain.EventNodeLeave, o.node, top.path.Child(o.node.Identifier), dir)

		case opExitScope:
			top := n.scopes[len(n.scopes)-1]
			top.result.SetEnd(n.stamp())
			n.scopes = n.scopes[:len(n.scopes)-1]
			n.emitNode(ctx, n.hooks.OnNodeLeave, domain.EventNodeLeave, top.node, top.path, dir)

		case opEnter:
			n.enter(ctx, o.node, dir)

		case opFinish:
			n.scopes = n.scopes[:1]
			n.current = nil
			n.status = domain.StatusCompleted
			if n.result.EndDate.IsZero() {
				n.result.SetEnd(n.stamp())
			}
			n.emitRun(ctx, n.hooks.OnRunFinished, domain.EventRunFinished)

		case opDropTail:
			top := n.scopes[len(n.scopes)-1]
			if r := top.result.Last(); r != nil {
				if leaf, ok := top.node.Child(r.ResultIdentifier()); ok && !leaf.IsBranch() {
					n.emitNode(ctx, n.hooks.OnNodeLeave, domain.EventNodeLeave, leaf, top.path.Child(leaf.Identifier), dir)
				}
			}
			top.result.RemoveLast()

		case opPop:
			n.scopes = n.scopes[:len(n.scopes)-1]

		case opReopen:
			top := n.scopes[len(n.scopes)-1]
			r := top.result.Last()
			r.SetEnd(time.Time{})
			if o.node.IsBranch() {
				br := r.(domain.BranchNodeResult)
				n.scopes = append(n.scopes, scope{path: top.path.Child(o.node.Identifier), node: o.node, result: br.Collection()})
			} else {
				n.current = o.node
				n.emitNode(ctx, n.hooks.OnNodeEnter, domain.EventNodeEnter, o.node, top.path.Child(o.node.Identifier), dir)
			}
		}
	}

	out := n.outcome()
	if !out.Terminal {
		n.logger.DebugContext(ctx, "navigated", "direction", dir, "node", out.Path.String())
	}
	return out
}

// enter records a visit to node in the innermost scope. A node already present
// in the scope's history is reused in place and everything after it is dropped.
func (n *Navigator) enter(ctx context.Context, node *domain.Node, dir domain.Direction) {
	top := n.scopes[len(n.scopes)-1]
	path := top.path.Child(node.Identifier)

	r, idx := top.result.Find(node.Identifier)
	if idx >= 0 {
		top.result.Truncate(idx + 1)
		r.SetEnd(time.Time{})
	} else {
		r = n.newResult(node)
		r.SetStart(n.stamp())
		top.result.AppendOrReplace(r)
	}

	n.emitNode(ctx, n.hooks.OnNodeEnter, domain.EventNodeEnter, node, path, dir)

	if node.IsBranch() {
		br, ok := r.(domain.BranchNodeResult)
		if !ok {
			// A leaf result under a branch identifier can only come from a foreign tree.
			br = domain.NewCollectionResult(node.Identifier)
			br.SetStart(n.stamp())
			top.result.AppendOrReplace(br)
		}
		n.scopes = append(n.scopes, scope{path: path, node: node, result: br.Collection()})
		return
	}
	n.current = node
}

func (n *Navigator) newResult(node *domain.Node) domain.Result {
	switch {
	case node.Kind == domain.KindAssessment:
		return domain.NewTaskResult(node.Identifier, n.result.TaskRunUUID)
	case node.IsBranch():
		return domain.NewCollectionResult(node.Identifier)
	case node.AcceptsInput():
		at := domain.AnswerType{Kind: domain.AnswerString}
		if node.Input != nil {
			at = node.Input.AnswerType
		}
		return domain.NewAnswerResult(node.Identifier, at)
	}
	return domain.NewStepResult(node.Identifier)
}

func (n *Navigator) emitNode(ctx context.Context, fn func(context.Context, *domain.NodeEvent), typ domain.EventType, node *domain.Node, path graph.Path, dir domain.Direction) {
	if fn == nil {
		return
	}
	fn(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: n.now(), Type: typ, SessionID: n.sessionID},
		NodeID:    node.Identifier,
		NodeKind:  node.Kind,
		Path:      slices.Clone(path),
		Direction: dir,
	})
}

func (n *Navigator) emitRun(ctx context.Context, fn func(context.Context, *domain.RunEvent), typ domain.EventType) {
	if fn == nil {
		return
	}
	fn(ctx, &domain.RunEvent{
		EventBase:    domain.EventBase{Timestamp: n.now(), Type: typ, SessionID: n.sessionID},
		AssessmentID: n.graph.Root().Identifier,
		Status:       n.status,
	})
}

func (n *Navigator) emitRule(ctx context.Context, fn func(context.Context, *domain.RuleEvent), typ domain.EventType, node *domain.Node, d rules.Directive, err error) {
	if fn == nil {
		return
	}
	fn(ctx, &domain.RuleEvent{
		EventBase: domain.EventBase{Timestamp: n.now(), Type: typ, SessionID: n.sessionID},
		NodeID:    node.Identifier,
		Target:    d.Target,
		Operator:  d.Operator,
		Err:       err,
	})
}
