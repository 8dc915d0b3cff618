package domain

import (
	"maps"

	"github.com/google/uuid"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

// ToolCall is a request from the model to invoke a named tool.
// Compatible with OpenAI/MCP tool call schemas.
type ToolCall struct {
	ID   string         `json:"id" yaml:"id" mapstructure:"id"`                         // Correlation ID, echoed by the ToolResult
	Name string         `json:"name" yaml:"name" mapstructure:"name"`                   // Registered tool name
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"` // Structured arguments
}

// Clone returns a copy of the call that does not share the args map.
func (c *ToolCall) Clone() *ToolCall {
	if c == nil {
		return nil
	}
	out := *c
	out.Args = maps.Clone(c.Args)
	return &out
}

// ToolResult is the outcome of a tool invocation.
type ToolResult struct {
	CallID  string `json:"call_id"` // Must match the ToolCall.ID
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Message is one entry of a conversation.
//
// A message becomes safe for other nodes to read only once Committed is true.
// Uncommitted messages exist only inside the node producing them.
type Message struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	Committed  bool        `json:"committed"`
}

// NewUserMessage creates a committed user message.
func NewUserMessage(text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   text,
		Committed: true,
	}
}

// NewModelMessage creates a committed model message with an optional tool call.
func NewModelMessage(text string, call *ToolCall) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleModel,
		Content:   text,
		ToolCall:  call.Clone(),
		Committed: true,
	}
}

// NewToolMessage creates a committed tool message answering callID.
func NewToolMessage(callID, text string, isError bool) Message {
	return Message{
		ID:      uuid.NewString(),
		Role:    RoleTool,
		Content: text,
		ToolResult: &ToolResult{
			CallID:  callID,
			Content: text,
			IsError: isError,
		},
		Committed: true,
	}
}

// HasPendingToolCall reports whether the message is a model message requesting a tool.
func (m Message) HasPendingToolCall() bool {
	return m.Role == RoleModel && m.ToolCall != nil && m.ToolCall.Name != ""
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	out.ToolCall = m.ToolCall.Clone()
	if m.ToolResult != nil {
		r := *m.ToolResult
		out.ToolResult = &r
	}
	return out
}

// Fragment is an incremental unit of model output.
// Fragments only travel on the live stream and are never stored in a log.
type Fragment struct {
	Delta    string    `json:"delta"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
}

// HistoryEntry is the public projection of a message returned by history reads.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
