package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/agentloop/pkg/domain"
)

// Overlay marks nodes a session went through.
type Overlay struct {
	Visited []domain.NodeID
	Current domain.NodeID
}

// OverlayFromHistory derives the visited nodes from committed history.
// Model and tool messages map onto their nodes. The last one is current.
func OverlayFromHistory(entries []domain.HistoryEntry) *Overlay {
	o := &Overlay{}
	for _, e := range entries {
		switch e.Role {
		case domain.RoleModel:
			o.Visited = append(o.Visited, domain.NodeModel)
		case domain.RoleTool:
			o.Visited = append(o.Visited, domain.NodeTool)
		}
	}
	if n := len(o.Visited); n > 0 {
		o.Current = o.Visited[n-1]
	}
	return o
}

// GenerateMermaid renders the graph as a Mermaid flowchart.
// The entry is drawn as a circle, tool nodes as subroutines and the end
// sink as a stadium. Conditional edges carry their condition as label.
func GenerateMermaid(g *domain.GraphSpec, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	endUsed := false
	for _, e := range g.Edges() {
		if e.To == domain.NodeEnd {
			endUsed = true
		}
	}

	for _, node := range g.Nodes() {
		opener, closer := "[", "]"
		switch {
		case node.ID == g.Entry():
			opener, closer = "((", "))"
		case node.Kind == domain.NodeKindTool:
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", mermaidID(node.ID), opener, node.ID, closer)
	}
	if endUsed {
		fmt.Fprintf(&sb, "    %s([\"end\"])\n", mermaidID(domain.NodeEnd))
	}

	for _, e := range g.Edges() {
		arrow := "-->"
		if e.Condition != domain.Always {
			arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(string(e.Condition), "\"", "'"))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", mermaidID(e.From), arrow, mermaidID(e.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[domain.NodeID]bool)
		for _, id := range overlay.Visited {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", mermaidID(id))
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", mermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func mermaidID(id domain.NodeID) string {
	s := strings.Trim(string(id), "_")
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_").Replace(s)
}
