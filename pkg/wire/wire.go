// Package wire defines the JSON shapes of the HTTP transport and the SSE
// framing shared by the server and the Go client.
package wire

import (
	"github.com/aretw0/agentloop/pkg/domain"
)

// PayloadType is the "type" field of a stream event.
type PayloadType string

const (
	TypeModel  PayloadType = "model"
	TypeTool   PayloadType = "tool"
	TypeResult PayloadType = "result"
	TypeError  PayloadType = "error"
)

// Payload is one stream event.
// Whole is false for live fragments and true for committed messages, so a
// client that rebuilt the text from fragments can skip the full copy.
type Payload struct {
	Type      PayloadType      `json:"type"`
	Content   string           `json:"content"`
	SessionID string           `json:"session_id"`
	Whole     bool             `json:"whole"`
	Node      string           `json:"node,omitempty"`
	ToolCall  *domain.ToolCall `json:"tool_call,omitempty"`
	Kind      string           `json:"kind,omitempty"` // error kind, see domain.ErrorKind
}

// FromEvent maps an execution event onto its wire payload.
func FromEvent(sessionID string, ev domain.ExecutionEvent) Payload {
	p := Payload{SessionID: sessionID, Node: string(ev.Node)}

	switch ev.Type {
	case domain.EventFragment:
		p.Type = TypeModel
		p.Content = ev.Fragment.Delta
		p.ToolCall = ev.Fragment.ToolCall
	case domain.EventCommitted:
		p.Type = TypeModel
		if ev.Message.Role == domain.RoleTool {
			p.Type = TypeTool
		}
		p.Content = ev.Message.Content
		p.ToolCall = ev.Message.ToolCall
		p.Whole = true
	case domain.EventRunFinished:
		p.Type = TypeResult
		p.Content = ev.Message.Content
		p.Whole = true
	case domain.EventRunFailed:
		p.Type = TypeError
		p.Whole = true
		p.Kind = domain.ErrorKind(ev.Err)
		if ev.Err != nil {
			p.Content = ev.Err.Error()
		}
	}
	return p
}

// InvokeRequest is the body of POST /agent/invoke.
// Stream defaults to true when omitted.
type InvokeRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Stream    *bool  `json:"stream,omitempty"`
}

// Streaming reports whether the caller asked for SSE.
func (r InvokeRequest) Streaming() bool {
	return r.Stream == nil || *r.Stream
}

// InvokeResponse is the non-streaming answer of POST /agent/invoke.
type InvokeResponse struct {
	SessionID string `json:"session_id"`
	Result    string `json:"result"`
}

// HistoryResponse is the body of GET /agent/history/{session_id}.
type HistoryResponse struct {
	SessionID string                `json:"session_id"`
	History   []domain.HistoryEntry `json:"history"`
}

// ErrorResponse is the body of non-streaming failures.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// GraphResponse is the body of GET /graph.
type GraphResponse struct {
	Entry string        `json:"entry"`
	Nodes []domain.Node `json:"nodes"`
	Edges []domain.Edge `json:"edges"`
}
