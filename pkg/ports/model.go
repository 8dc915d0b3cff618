package ports

import (
	"context"
	"iter"

	"github.com/aretw0/agentloop/pkg/domain"
)

// ModelStep wraps the external language-model capability.
type ModelStep interface {
	// Generate produces a lazy, finite sequence of fragments for the given history.
	// The sequence ends when the model is done; a non-nil error ends it early
	// and should wrap domain.ErrModelUnavailable or domain.ErrMalformedResponse.
	// Implementations must not mutate history and must stop when ctx is done.
	Generate(ctx context.Context, history []domain.Message) iter.Seq2[domain.Fragment, error]
}

// ToolBackend executes named tools.
type ToolBackend interface {
	// Call invokes the named tool. Unknown names fail with domain.ErrToolNotFound.
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

// ToolLister is implemented by backends that can describe their tools.
type ToolLister interface {
	Tools() []domain.Tool
}
