package domain

import (
	"context"
	"time"
)

// EventType defines the category of an execution event.
type EventType string

const (
	EventFragment    EventType = "fragment"
	EventCommitted   EventType = "committed"
	EventRunFinished EventType = "run_finished"
	EventRunFailed   EventType = "run_failed"
)

// ExecutionEvent is emitted by a run, in production order.
//
//   - fragment: Node and Fragment are set.
//   - committed: Node and Message are set.
//   - run_finished: Message holds the final model message.
//   - run_failed: Err is set, Node is set when a node failed.
type ExecutionEvent struct {
	Type     EventType
	Node     NodeID
	Fragment *Fragment
	Message  *Message
	Err      error
}

// FragmentProduced builds a fragment event.
func FragmentProduced(node NodeID, f Fragment) ExecutionEvent {
	return ExecutionEvent{Type: EventFragment, Node: node, Fragment: &f}
}

// MessageCommitted builds a commit event.
func MessageCommitted(node NodeID, m Message) ExecutionEvent {
	return ExecutionEvent{Type: EventCommitted, Node: node, Message: &m}
}

// RunFinished builds the terminal success event.
func RunFinished(final Message) ExecutionEvent {
	return ExecutionEvent{Type: EventRunFinished, Message: &final}
}

// RunFailed builds the terminal failure event.
func RunFailed(node NodeID, err error) ExecutionEvent {
	return ExecutionEvent{Type: EventRunFailed, Node: node, Err: err}
}

// Terminal reports whether the event ends the run.
func (e ExecutionEvent) Terminal() bool {
	return e.Type == EventRunFinished || e.Type == EventRunFailed
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	NodeID    NodeID    `json:"node_id"`
	NodeKind  NodeKind  `json:"node_kind"`
	Round     int       `json:"round"`
}

// ToolEvent represents a tool execution.
type ToolEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	SessionID string        `json:"session_id"`
	ToolName  string        `json:"tool_name"`
	Input     any           `json:"input,omitempty"`
	Output    string        `json:"output,omitempty"`
	IsError   bool          `json:"is_error,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// RunEvent summarises a finished run.
type RunEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	SessionID string        `json:"session_id"`
	Rounds    int           `json:"rounds"`
	Fragments int           `json:"fragments"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnNodeEnter  func(context.Context, *NodeEvent)
	OnNodeLeave  func(context.Context, *NodeEvent)
	OnToolCall   func(context.Context, *ToolEvent)
	OnToolReturn func(context.Context, *ToolEvent)
	OnRunFinish  func(context.Context, *RunEvent)
}
