package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable is returned when the model backend cannot be reached.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrMalformedResponse is returned when the model backend produced unusable output.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrToolNotFound is returned when a tool call names an unregistered tool.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolExecution wraps a failure reported by a tool backend.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrTimeout is returned when a model or tool call exceeds its deadline.
	ErrTimeout = errors.New("step timed out")

	// ErrInvalidState signals broken node wiring or a violated log invariant.
	// It is not recoverable.
	ErrInvalidState = errors.New("invalid state")

	// ErrSessionBusy is returned when a session already has a run in flight.
	ErrSessionBusy = errors.New("session busy")

	// ErrLoopLimitExceeded is returned when a run exceeds the configured number of tool rounds.
	ErrLoopLimitExceeded = errors.New("tool loop limit exceeded")

	// ErrAbandoned ends a run whose event consumer stopped reading.
	ErrAbandoned = errors.New("run abandoned by consumer")
)

// NodeError attaches the failing node to a run error.
type NodeError struct {
	Node NodeID
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// ErrorKind maps an error onto a stable label of the error taxonomy.
// Used for metric labels and transport status mapping.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionBusy):
		return "session_busy"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrToolNotFound):
		return "tool_not_found"
	case errors.Is(err, ErrToolExecution):
		return "tool_execution"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrLoopLimitExceeded):
		return "loop_limit"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrAbandoned):
		return "abandoned"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
