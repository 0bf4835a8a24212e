package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/graph"
)

// Restore rebuilds the navigator position from a previously emitted result by
// replaying each scope's path history down to its last entry. The result is
// adopted as is; callers pass a copy when the original must stay untouched.
// status is the persisted run status; it names the outcome of a terminated
// result and defaults to completed when it is not terminal.
// Nothing is changed on error.
func (n *Navigator) Restore(ctx context.Context, result *domain.AssessmentResult, status domain.ExecutionStatus) (Outcome, error) {
	if result == nil {
		return Outcome{}, &domain.SnapshotError{Reason: "no result"}
	}
	root := n.graph.Root()
	if result.Identifier != root.Identifier {
		return Outcome{}, &domain.SnapshotError{Reason: fmt.Sprintf("result %q does not belong to assessment %q", result.Identifier, root.Identifier)}
	}

	scopes := []scope{{path: nil, node: root, result: &result.CollectionResult}}
	if err := checkScope(scopes[0]); err != nil {
		return Outcome{}, err
	}

	if result.Terminated() {
		n.result = result
		n.scopes = scopes
		n.current = nil
		n.status = domain.StatusCompleted
		if status.Terminal() {
			n.status = status
		}
		return n.outcome(), nil
	}

	if result.Len() == 0 {
		// Nothing was visited yet; replay is a fresh start.
		n.result = nil
		return n.Start(ctx, result)
	}

	var current *domain.Node
	var reopen []domain.Result
	for current == nil {
		s := scopes[len(scopes)-1]
		tail := s.result.Last()
		if tail == nil {
			return Outcome{}, &domain.SnapshotError{Reason: fmt.Sprintf("active branch %q has no history", s.path.String())}
		}
		node, _ := s.node.Child(tail.ResultIdentifier())
		reopen = append(reopen, tail)
		if !node.IsBranch() {
			current = node
			break
		}
		scopes = append(scopes, scope{path: s.path.Child(node.Identifier), node: node, result: tail.(domain.BranchNodeResult).Collection()})
	}

	for _, r := range reopen {
		r.SetEnd(time.Time{})
	}
	n.result = result
	n.scopes = scopes
	n.current = current
	n.status = domain.StatusActive
	n.emitRun(ctx, n.hooks.OnRunResumed, domain.EventRunResumed)
	n.logger.DebugContext(ctx, "navigator restored", "node", n.CurrentPath().String(), "entries", result.Len())
	return n.outcome(), nil
}

// checkScope verifies, recursively, that every entry of a scope's history
// names a child of its branch once, with a result shape matching the node kind.
func checkScope(s scope) error {
	seen := make(map[string]bool, s.result.Len())
	for i, r := range s.result.PathHistory() {
		id := r.ResultIdentifier()
		node, ok := s.node.Child(id)
		if !ok {
			return &domain.GraphError{Code: domain.CodeUnknownIdentifier, Identifier: id, Scope: s.path.String()}
		}
		if seen[id] {
			return &domain.SnapshotError{Reason: fmt.Sprintf("duplicate entry %q in %s", id, scopeLabel(s.path))}
		}
		seen[id] = true

		_, isBranch := r.(domain.BranchNodeResult)
		switch {
		case node.IsBranch() && !isBranch:
			return &domain.SnapshotError{Reason: fmt.Sprintf("entry %d (%q) should be a branch result", i, id)}
		case !node.IsBranch() && isBranch:
			return &domain.SnapshotError{Reason: fmt.Sprintf("entry %d (%q) should be a step result", i, id)}
		case node.AcceptsInput():
			if _, ok := r.(*domain.AnswerResult); !ok {
				return &domain.SnapshotError{Reason: fmt.Sprintf("entry %d (%q) should be an answer result", i, id)}
			}
		}
		if !r.End().IsZero() && r.End().Before(r.Start()) {
			return &domain.SnapshotError{Reason: fmt.Sprintf("entry %q ends before it starts", id)}
		}
		if isBranch {
			child := scope{path: s.path.Child(id), node: node, result: r.(domain.BranchNodeResult).Collection()}
			if err := checkScope(child); err != nil {
				return err
			}
		}
	}
	return nil
}

func scopeLabel(p graph.Path) string {
	if len(p) == 0 {
		return "root"
	}
	return p.String()
}
