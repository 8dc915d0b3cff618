package runtime

import (
	"context"
	"iter"
	"strings"

	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/ports"
	"github.com/google/uuid"
)

// Aggregator folds the fragments of one model invocation into a single
// committed message. Text deltas are concatenated in arrival order and the
// last fragment carrying a tool call wins.
//
// An Aggregator is used for exactly one invocation.
type Aggregator struct {
	text  strings.Builder
	call  *domain.ToolCall
	count int
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add folds one fragment.
func (a *Aggregator) Add(f domain.Fragment) {
	a.text.WriteString(f.Delta)
	if f.ToolCall != nil {
		a.call = f.ToolCall.Clone()
	}
	a.count++
}

// Count returns the number of fragments folded so far.
func (a *Aggregator) Count() int {
	return a.count
}

// Commit builds the committed model message.
// A tool call without a correlation ID gets a generated one so the tool
// message answering it can be matched.
func (a *Aggregator) Commit() domain.Message {
	call := a.call.Clone()
	if call != nil && call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}
	return domain.NewModelMessage(a.text.String(), call)
}

// Aggregate is a convenience for folding a complete fragment slice.
func Aggregate(frags ...domain.Fragment) domain.Message {
	a := NewAggregator()
	for _, f := range frags {
		a.Add(f)
	}
	return a.Commit()
}

// ModelFunc is a non-streaming model backend returning its final message at once.
type ModelFunc func(ctx context.Context, history []domain.Message) (domain.Message, error)

// SingleShot adapts a non-streaming backend to ports.ModelStep.
// The whole answer is emitted as one fragment.
func SingleShot(fn ModelFunc) ports.ModelStep {
	return singleShot(fn)
}

type singleShot ModelFunc

func (s singleShot) Generate(ctx context.Context, history []domain.Message) iter.Seq2[domain.Fragment, error] {
	return func(yield func(domain.Fragment, error) bool) {
		msg, err := s(ctx, history)
		if err != nil {
			yield(domain.Fragment{}, err)
			return
		}
		yield(domain.Fragment{Delta: msg.Content, ToolCall: msg.ToolCall}, nil)
	}
}
