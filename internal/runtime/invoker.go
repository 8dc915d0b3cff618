package runtime

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/ports"
)

// ToolInvoker executes tool calls against a backend and turns every outcome
// into exactly one committed tool message.
type ToolInvoker struct {
	backend ports.ToolBackend
	timeout time.Duration
}

// NewToolInvoker creates an invoker. A zero timeout disables the per-call deadline.
func NewToolInvoker(backend ports.ToolBackend, timeout time.Duration) *ToolInvoker {
	return &ToolInvoker{backend: backend, timeout: timeout}
}

// Invoke runs the call. The returned message is always committed: on failure
// it carries a textual error payload and the error is returned alongside it.
func (i *ToolInvoker) Invoke(ctx context.Context, call domain.ToolCall) (domain.Message, error) {
	callCtx, cancel := withStepTimeout(ctx, i.timeout)
	defer cancel()

	out, err := i.backend.Call(callCtx, call.Name, maps.Clone(call.Args))
	if err == nil {
		return domain.NewToolMessage(call.ID, out, false), nil
	}

	err = classify(ctx, callCtx, err, "tool "+call.Name, i.timeout, domain.ErrToolExecution, domain.ErrToolNotFound)
	return domain.NewToolMessage(call.ID, fmt.Sprintf("Error: %v", err), true), err
}

func withStepTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
