package runtime_test

import (
	"context"
	"iter"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/agentloop/internal/runtime"
	"github.com/aretw0/agentloop/pkg/adapters/memory"
	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/ports"
	"github.com/aretw0/agentloop/pkg/registry"
	"github.com/aretw0/agentloop/pkg/session"
	"github.com/stretchr/testify/require"
)

// step is one scripted model invocation.
type step struct {
	frags []domain.Fragment
	err   error // yielded after frags
	block bool  // wait for ctx after frags
}

// scriptedModel replays one step per invocation. The last step repeats.
type scriptedModel struct {
	mu    sync.Mutex
	steps []step
	calls int
	seen  [][]domain.Message
}

func (m *scriptedModel) Generate(ctx context.Context, history []domain.Message) iter.Seq2[domain.Fragment, error] {
	m.mu.Lock()
	idx := min(m.calls, len(m.steps)-1)
	m.calls++
	m.seen = append(m.seen, history)
	s := m.steps[idx]
	m.mu.Unlock()

	return func(yield func(domain.Fragment, error) bool) {
		for _, f := range s.frags {
			if !yield(f, nil) {
				return
			}
		}
		if s.block {
			<-ctx.Done()
			return
		}
		if s.err != nil {
			yield(domain.Fragment{}, s.err)
		}
	}
}

func (m *scriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// text splits s into one fragment per rune.
func text(s string) []domain.Fragment {
	var out []domain.Fragment
	for _, r := range s {
		out = append(out, domain.Fragment{Delta: string(r)})
	}
	return out
}

func weatherCall(location string) *domain.ToolCall {
	return &domain.ToolCall{ID: "call_1", Name: "get_weather", Args: map[string]any{"location": location}}
}

func weatherRegistry() *registry.Registry {
	reg := registry.NewRegistry()
	reg.Register(domain.Tool{Name: "get_weather", Description: "weather lookup"},
		func(ctx context.Context, args map[string]any) (string, error) {
			loc, _ := args["location"].(string)
			return "Mock天气: " + loc + " 晴朗，25°C", nil
		})
	return reg
}

type fixture struct {
	exec     *runtime.Executor
	store    *memory.Store
	sessions *session.Manager
}

func newFixture(t *testing.T, model ports.ModelStep, tools *registry.Registry, opts ...runtime.ExecutorOption) *fixture {
	t.Helper()
	store := memory.NewStore()
	sessions := session.NewManager(store)
	exec, err := runtime.NewExecutor(domain.NewAgentGraph(), model, tools, sessions, opts...)
	require.NoError(t, err)
	return &fixture{exec: exec, store: store, sessions: sessions}
}

func collect(seq iter.Seq[domain.ExecutionEvent]) []domain.ExecutionEvent {
	var out []domain.ExecutionEvent
	for ev := range seq {
		out = append(out, ev)
	}
	return out
}

// streamedText concatenates the fragment deltas of a node.
func streamedText(events []domain.ExecutionEvent) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Type == domain.EventFragment {
			b.WriteString(ev.Fragment.Delta)
		}
	}
	return b.String()
}

func types(events []domain.ExecutionEvent) []domain.EventType {
	out := make([]domain.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}
