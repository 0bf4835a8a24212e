package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/quire/pkg/domain"
	stepgraph "github.com/aretw0/quire/pkg/graph"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
// Paths are slash-joined identifier paths ("habits/smoker").
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromState marks every step present in the result tree as visited
// and the state's current path as current.
func OverlayFromState(st *domain.State) *GraphOverlay {
	o := &GraphOverlay{}
	if st == nil {
		return o
	}
	if st.Result != nil {
		o.VisitedNodes = visited(nil, &st.Result.CollectionResult)
	}
	o.CurrentNode = strings.Join(st.CurrentPath, "/")
	return o
}

func visited(prefix []string, c *domain.CollectionResult) []string {
	var out []string
	for _, r := range c.PathHistory() {
		p := append(append([]string(nil), prefix...), r.ResultIdentifier())
		out = append(out, strings.Join(p, "/"))
		if b, ok := r.(domain.BranchNodeResult); ok {
			out = append(out, visited(p, b.Collection())...)
		}
	}
	return out
}

// GenerateMermaid produces a Mermaid flowchart of the step graph.
// Branches become subgraphs. Node shapes follow the step kind:
// - Question: [/Parallelogram/]
// - Completion: ((Circle))
// - Custom: [[Subroutine]]
// - Instruction: [Rectangle]
// Solid arrows are the linear order; labelled arrows are survey rules.
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(g *stepgraph.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	root := g.Root()
	writeScope(&sb, g, nil, root, 1)

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, p := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(p)
			if safeID == "" || seen[safeID] || p == overlay.CurrentNode {
				continue
			}
			if _, err := g.Lookup(stepgraph.Path(strings.Split(p, "/"))); err != nil {
				continue
			}
			seen[safeID] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}
	return sb.String()
}

func writeScope(sb *strings.Builder, g *stepgraph.Graph, scope stepgraph.Path, branch *domain.Node, depth int) {
	indent := strings.Repeat("    ", depth)
	exitUsed := false

	for i := range branch.Children {
		child := &branch.Children[i]
		p := scope.Child(child.Identifier)
		safeID := sanitizeMermaidID(p.String())
		label := escapeLabel(nodeLabel(child))

		if child.IsBranch() {
			fmt.Fprintf(sb, "%ssubgraph %s [\"%s\"]\n", indent, safeID, label)
			writeScope(sb, g, p, child, depth+1)
			fmt.Fprintf(sb, "%send\n", indent)
		} else {
			opener, closer := shape(child.Kind)
			fmt.Fprintf(sb, "%s%s%s\"%s\"%s\n", indent, safeID, opener, label, closer)
		}

		alwaysSkips := false
		for _, r := range child.SurveyRules {
			op := r.EffectiveOperator()
			if op == domain.OpSkip {
				alwaysSkips = true
			}
			var target string
			if r.SkipTo == domain.ExitBranch {
				target = exitID(scope)
				exitUsed = true
			} else {
				tp, err := g.Resolve(scope, r.SkipTo)
				if err != nil {
					fmt.Fprintf(sb, "%s%%%% %s: unresolved target %q\n", indent, p, r.SkipTo)
					continue
				}
				target = sanitizeMermaidID(tp.String())
			}
			fmt.Fprintf(sb, "%s%s -. \"%s\" .-> %s\n", indent, safeID, escapeLabel(ruleLabel(r)), target)
		}

		if i+1 < len(branch.Children) && !alwaysSkips {
			next := sanitizeMermaidID(scope.Child(branch.Children[i+1].Identifier).String())
			fmt.Fprintf(sb, "%s%s --> %s\n", indent, safeID, next)
		}
	}
	if exitUsed {
		fmt.Fprintf(sb, "%s%s(((\"exit\")))\n", indent, exitID(scope))
	}
}

func shape(kind domain.NodeKind) (string, string) {
	switch kind {
	case domain.KindQuestion:
		return "[/", "/]"
	case domain.KindCompletion:
		return "((", "))"
	case domain.KindCustom:
		return "[[", "]]"
	}
	return "[", "]"
}

func nodeLabel(n *domain.Node) string {
	title, _, _ := domain.DisplayText(n)
	if title == "" || title == n.Identifier {
		return n.Identifier
	}
	return n.Identifier + ": " + title
}

func ruleLabel(r domain.SurveyRule) string {
	op := r.EffectiveOperator()
	if op == domain.OpSkip {
		return "always"
	}
	if r.MatchingValue == nil {
		return string(op) + " null"
	}
	return string(op) + " " + r.MatchingValue.String()
}

func exitID(scope stepgraph.Path) string {
	if len(scope) == 0 {
		return "exit"
	}
	return sanitizeMermaidID(scope.String()) + "__exit"
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
