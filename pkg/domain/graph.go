package domain

import (
	"fmt"
	"slices"
)

// NodeID identifies a node of the graph.
type NodeID string

const (
	// NodeModel is the streaming model node.
	NodeModel NodeID = "model"
	// NodeTool is the side-effecting tool node.
	NodeTool NodeID = "tool"
	// NodeEnd is the sink. It is not a real node and has no outgoing edges.
	NodeEnd NodeID = "__end__"
)

// NodeKind defines how the executor runs a node.
type NodeKind string

const (
	NodeKindModel NodeKind = "model"
	NodeKindTool  NodeKind = "tool"
)

// Node is a vertex of the graph.
type Node struct {
	ID   NodeID   `json:"id" yaml:"id"`
	Kind NodeKind `json:"kind" yaml:"kind"`
}

// Condition gates an edge on the most recent committed message.
type Condition string

const (
	// Always edges are taken unconditionally.
	Always Condition = ""
	// WhenToolCall edges are taken when the last message requests a tool.
	WhenToolCall Condition = "tool_call"
	// WhenNoToolCall edges are taken when the last message requests no tool.
	WhenNoToolCall Condition = "no_tool_call"
)

// Edge is a directed, optionally conditional, connection between nodes.
type Edge struct {
	From      NodeID    `json:"from" yaml:"from"`
	To        NodeID    `json:"to" yaml:"to"`
	Condition Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
}

func (c Condition) matches(last Message) bool {
	switch c {
	case Always:
		return true
	case WhenToolCall:
		return last.HasPendingToolCall()
	case WhenNoToolCall:
		return !last.HasPendingToolCall()
	default:
		return false
	}
}

// GraphSpec is the static topology of the workflow.
// It is immutable once built and safe to share between runs.
type GraphSpec struct {
	entry NodeID
	nodes []Node
	edges []Edge
}

// NewGraphSpec validates and builds a topology.
func NewGraphSpec(entry NodeID, nodes []Node, edges []Edge) (*GraphSpec, error) {
	g := &GraphSpec{
		entry: entry,
		nodes: slices.Clone(nodes),
		edges: slices.Clone(edges),
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// NewAgentGraph builds the model → (tool → model)* → end topology.
func NewAgentGraph() *GraphSpec {
	g, err := NewGraphSpec(NodeModel,
		[]Node{
			{ID: NodeModel, Kind: NodeKindModel},
			{ID: NodeTool, Kind: NodeKindTool},
		},
		[]Edge{
			{From: NodeModel, To: NodeTool, Condition: WhenToolCall},
			{From: NodeModel, To: NodeEnd, Condition: WhenNoToolCall},
			{From: NodeTool, To: NodeModel},
		},
	)
	if err != nil {
		panic(err)
	}
	return g
}

// Validate checks the structural rules of the topology.
func (g *GraphSpec) Validate() error {
	if _, ok := g.Node(g.entry); !ok {
		return fmt.Errorf("%w: entry node %q is not defined", ErrInvalidState, g.entry)
	}
	seen := make(map[NodeID]bool, len(g.nodes))
	for _, n := range g.nodes {
		if n.ID == "" || n.ID == NodeEnd {
			return fmt.Errorf("%w: reserved or empty node id %q", ErrInvalidState, n.ID)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: duplicate node %q", ErrInvalidState, n.ID)
		}
		seen[n.ID] = true
		if n.Kind != NodeKindModel && n.Kind != NodeKindTool {
			return fmt.Errorf("%w: node %q has unknown kind %q", ErrInvalidState, n.ID, n.Kind)
		}
	}
	for _, e := range g.edges {
		if !seen[e.From] {
			return fmt.Errorf("%w: edge from undefined node %q", ErrInvalidState, e.From)
		}
		if e.To != NodeEnd && !seen[e.To] {
			return fmt.Errorf("%w: edge to undefined node %q", ErrInvalidState, e.To)
		}
		switch e.Condition {
		case Always, WhenToolCall, WhenNoToolCall:
		default:
			return fmt.Errorf("%w: edge %s->%s has unknown condition %q", ErrInvalidState, e.From, e.To, e.Condition)
		}
	}
	for _, n := range g.nodes {
		if len(g.outgoing(n.ID)) == 0 {
			return fmt.Errorf("%w: node %q has no outgoing edge", ErrInvalidState, n.ID)
		}
	}
	return nil
}

// Entry returns the initial node.
func (g *GraphSpec) Entry() NodeID { return g.entry }

// Nodes returns a copy of the node list.
func (g *GraphSpec) Nodes() []Node { return slices.Clone(g.nodes) }

// Edges returns a copy of the edge list.
func (g *GraphSpec) Edges() []Edge { return slices.Clone(g.edges) }

// Node looks up a node by id.
func (g *GraphSpec) Node(id NodeID) (Node, bool) {
	for _, n := range g.nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

func (g *GraphSpec) outgoing(from NodeID) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.From == from {
			out = append(out, e)
		}
	}
	return out
}

// Route resolves the node that follows from, using only the most recent
// message of log. The message must be committed. Edges are evaluated in
// declaration order and the first match wins.
func (g *GraphSpec) Route(from NodeID, log *ConversationLog) (NodeID, error) {
	last, ok := log.Last()
	if !ok {
		return "", fmt.Errorf("%w: routing from %s with an empty log", ErrInvalidState, from)
	}
	if !last.Committed {
		return "", fmt.Errorf("%w: routing from %s on an uncommitted message", ErrInvalidState, from)
	}
	for _, e := range g.outgoing(from) {
		if e.Condition.matches(last) {
			return e.To, nil
		}
	}
	return "", fmt.Errorf("%w: no edge from %s matches the last %s message", ErrInvalidState, from, last.Role)
}
