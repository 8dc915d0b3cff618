package agentloop

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/aretw0/agentloop/internal/logging"
	"github.com/aretw0/agentloop/internal/runtime"
	"github.com/aretw0/agentloop/pkg/adapters/memory"
	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/ports"
	"github.com/aretw0/agentloop/pkg/session"
)

// Turn is one claimed run. Range over Events once, or Close it.
type Turn = runtime.Turn

// ToolErrorPolicy decides what a failed tool call does to the run.
type ToolErrorPolicy = runtime.ToolErrorPolicy

const (
	ToolErrorsAbort  = runtime.ToolErrorsAbort
	ToolErrorsReport = runtime.ToolErrorsReport

	DefaultMaxToolRounds = runtime.DefaultMaxToolRounds
)

// Engine is the high-level entry point of the library.
// It wires the graph executor to a session store and is safe for concurrent
// use across sessions.
type Engine struct {
	exec     *runtime.Executor
	sessions *session.Manager

	graph         *domain.GraphSpec
	store         ports.SessionStore
	locker        ports.DistributedLocker
	lockTTL       time.Duration
	maxToolRounds int
	stepTimeout   time.Duration
	toolErrors    ToolErrorPolicy
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the session store. Defaults to an in-memory store.
func WithStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables cross-process session exclusivity.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithGraph replaces the default model/tool topology.
func WithGraph(graph *domain.GraphSpec) Option {
	return func(e *Engine) {
		e.graph = graph
	}
}

// WithMaxToolRounds bounds the tool round trips of one run.
func WithMaxToolRounds(n int) Option {
	return func(e *Engine) {
		e.maxToolRounds = n
	}
}

// WithStepTimeout sets the deadline of every model and tool call.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.stepTimeout = d
	}
}

// WithToolErrorPolicy sets how tool failures affect the run.
func WithToolErrorPolicy(p ToolErrorPolicy) Option {
	return func(e *Engine) {
		e.toolErrors = p
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New builds an engine around a model and a tool backend.
func New(model ports.ModelStep, tools ports.ToolBackend, opts ...Option) (*Engine, error) {
	e := &Engine{
		maxToolRounds: DefaultMaxToolRounds,
		toolErrors:    ToolErrorsAbort,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.graph == nil {
		e.graph = domain.NewAgentGraph()
	}

	sessionOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker), session.WithLockTTL(e.lockTTL))
	}
	e.sessions = session.NewManager(e.store, sessionOpts...)

	exec, err := runtime.NewExecutor(e.graph, model, tools, e.sessions,
		runtime.WithMaxToolRounds(e.maxToolRounds),
		runtime.WithStepTimeout(e.stepTimeout),
		runtime.WithToolErrorPolicy(e.toolErrors),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithLogger(e.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build executor: %w", err)
	}
	e.exec = exec
	return e, nil
}

// Begin claims the session and prepares a run. It fails fast with
// domain.ErrSessionBusy if another run holds the session.
func (e *Engine) Begin(ctx context.Context, sessionID, query string) (*Turn, error) {
	return e.exec.Begin(ctx, sessionID, query)
}

// RunTurn streams one run. The sequence always ends with a run_finished or
// run_failed event.
func (e *Engine) RunTurn(ctx context.Context, sessionID, query string) iter.Seq[domain.ExecutionEvent] {
	return e.exec.RunTurn(ctx, sessionID, query)
}

// Invoke runs to completion and returns the final model message.
func (e *Engine) Invoke(ctx context.Context, sessionID, query string) (domain.Message, error) {
	turn, err := e.Begin(ctx, sessionID, query)
	if err != nil {
		return domain.Message{}, err
	}
	return Collect(turn.Events())
}

// Collect drains a run and returns its final message or failure.
func Collect(events iter.Seq[domain.ExecutionEvent]) (domain.Message, error) {
	for ev := range events {
		switch ev.Type {
		case domain.EventRunFinished:
			return *ev.Message, nil
		case domain.EventRunFailed:
			return domain.Message{}, ev.Err
		}
	}
	return domain.Message{}, errors.New("run ended without a terminal event")
}

// History returns the committed role/content pairs of a session.
func (e *Engine) History(ctx context.Context, sessionID string) ([]domain.HistoryEntry, error) {
	return e.sessions.History(ctx, sessionID)
}

// Sessions lists the known session ids.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Graph returns the topology the engine runs.
func (e *Engine) Graph() *domain.GraphSpec {
	return e.graph
}
