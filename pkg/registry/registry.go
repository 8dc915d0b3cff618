package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/schema"
)

// ToolFunction defines the signature for a tool implementation.
// It receives a context and a map of arguments, and returns a text result or error.
type ToolFunction func(ctx context.Context, args map[string]any) (string, error)

type entry struct {
	tool   domain.Tool
	schema schema.Schema
	fn     ToolFunction
}

// Registry manages the available tools.
// It is populated at startup and read by every run.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]entry),
	}
}

// Register adds a tool to the registry.
// If a tool with the same name exists, it is overwritten.
func (r *Registry) Register(tool domain.Tool, fn ToolFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = entry{tool: tool, schema: schema.FromJSONSchema(tool.Parameters), fn: fn}
}

// Merge copies every tool of other into r, overwriting tools with the same name.
func (r *Registry) Merge(other *Registry) {
	if other == r {
		return
	}
	other.mu.RLock()
	defer other.mu.RUnlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range other.tools {
		r.tools[name] = e
	}
}

// Call looks up a tool by name, checks args against its declared
// parameters and executes it.
// Returns domain.ErrToolNotFound if the tool is not registered, and an error
// matching schema.ErrInvalidArguments if args do not fit the parameters.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
	}
	if err := e.schema.Validate(args); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	return e.fn(ctx, args)
}

// Tools returns the registered tool descriptions sorted by name.
func (r *Registry) Tools() []domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Tool, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
