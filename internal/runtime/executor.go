package runtime

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/agentloop/internal/logging"
	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/ports"
	"github.com/aretw0/agentloop/pkg/session"
)

// DefaultMaxToolRounds is the tool round-trip bound used when none is configured.
const DefaultMaxToolRounds = 8

// ToolErrorPolicy decides what a failed tool call does to the run.
type ToolErrorPolicy string

const (
	// ToolErrorsAbort fails the run after broadcasting the error payload.
	ToolErrorsAbort ToolErrorPolicy = "abort"
	// ToolErrorsReport commits the error payload and lets the model answer it.
	ToolErrorsReport ToolErrorPolicy = "report"
)

// Executor drives runs over a GraphSpec.
// It is built once and shared by every session; it holds no per-run state.
type Executor struct {
	graph    *domain.GraphSpec
	model    ports.ModelStep
	tools    *ToolInvoker
	sessions *session.Manager

	maxToolRounds int
	stepTimeout   time.Duration
	toolErrors    ToolErrorPolicy
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxToolRounds bounds the number of model ↔ tool round trips per run.
func WithMaxToolRounds(n int) ExecutorOption {
	return func(e *Executor) {
		e.maxToolRounds = n
	}
}

// WithStepTimeout sets the deadline applied to every model and tool call.
// Zero disables it.
func WithStepTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.stepTimeout = d
	}
}

// WithToolErrorPolicy sets how tool failures affect the run.
func WithToolErrorPolicy(p ToolErrorPolicy) ExecutorOption {
	return func(e *Executor) {
		e.toolErrors = p
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) ExecutorOption {
	return func(e *Executor) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor validates its collaborators and builds an executor.
func NewExecutor(
	graph *domain.GraphSpec,
	model ports.ModelStep,
	tools ports.ToolBackend,
	sessions *session.Manager,
	opts ...ExecutorOption,
) (*Executor, error) {
	e := &Executor{
		graph:         graph,
		model:         model,
		sessions:      sessions,
		maxToolRounds: DefaultMaxToolRounds,
		toolErrors:    ToolErrorsAbort,
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	switch {
	case graph == nil:
		return nil, fmt.Errorf("%w: executor needs a graph", domain.ErrInvalidState)
	case model == nil:
		return nil, fmt.Errorf("%w: executor needs a model step", domain.ErrInvalidState)
	case tools == nil:
		return nil, fmt.Errorf("%w: executor needs a tool backend", domain.ErrInvalidState)
	case sessions == nil:
		return nil, fmt.Errorf("%w: executor needs a session manager", domain.ErrInvalidState)
	case e.maxToolRounds <= 0:
		return nil, fmt.Errorf("%w: max tool rounds must be positive, got %d", domain.ErrInvalidState, e.maxToolRounds)
	case e.stepTimeout < 0:
		return nil, fmt.Errorf("%w: negative step timeout", domain.ErrInvalidState)
	case e.toolErrors != ToolErrorsAbort && e.toolErrors != ToolErrorsReport:
		return nil, fmt.Errorf("%w: unknown tool error policy %q", domain.ErrInvalidState, e.toolErrors)
	}
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	e.tools = NewToolInvoker(tools, e.stepTimeout)
	return e, nil
}

// Graph returns the shared topology.
func (e *Executor) Graph() *domain.GraphSpec {
	return e.graph
}

// Sessions returns the session manager.
func (e *Executor) Sessions() *session.Manager {
	return e.sessions
}

// Turn is one run against a session, claimed by Begin.
type Turn struct {
	exec      *Executor
	ctx       context.Context
	sessionID string
	working   *domain.ConversationLog
	base      int
	release   session.ReleaseFunc
	started   atomic.Bool
}

// Begin claims the session, loads its committed log and appends the new user
// message to a private working copy. Nothing is persisted until the run
// completes. The caller must consume Events or call Close.
func (e *Executor) Begin(ctx context.Context, sessionID, userText string) (*Turn, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", domain.ErrInvalidState)
	}

	release, err := e.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	stored, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		release()
		return nil, err
	}

	working, err := domain.NewConversationLog(stored...)
	if err != nil {
		release()
		return nil, fmt.Errorf("stored log of %s: %w", sessionID, err)
	}
	if err := working.Append(domain.NewUserMessage(userText)); err != nil {
		release()
		return nil, err
	}

	return &Turn{
		exec:      e,
		ctx:       ctx,
		sessionID: sessionID,
		working:   working,
		base:      len(stored),
		release:   release,
	}, nil
}

// RunTurn is Begin followed by Events. A failure to begin (e.g. a busy
// session) is reported as a single run_failed event.
func (e *Executor) RunTurn(ctx context.Context, sessionID, userText string) iter.Seq[domain.ExecutionEvent] {
	return func(yield func(domain.ExecutionEvent) bool) {
		turn, err := e.Begin(ctx, sessionID, userText)
		if err != nil {
			yield(domain.RunFailed("", err))
			return
		}
		for ev := range turn.Events() {
			if !yield(ev) {
				return
			}
		}
	}
}

// SessionID returns the session the turn runs against.
func (t *Turn) SessionID() string {
	return t.sessionID
}

// Close releases the session if Events was never consumed.
func (t *Turn) Close() {
	if t.started.CompareAndSwap(false, true) {
		t.release()
	}
}

// Events executes the run lazily, yielding events in production order and
// ending with run_finished or run_failed. The working log is persisted just
// before run_finished; on failure, or if the consumer stops early, it is
// discarded. Events may be ranged over once.
func (t *Turn) Events() iter.Seq[domain.ExecutionEvent] {
	return func(yield func(domain.ExecutionEvent) bool) {
		if !t.started.CompareAndSwap(false, true) {
			yield(domain.RunFailed("", fmt.Errorf("%w: turn already consumed", domain.ErrInvalidState)))
			return
		}
		defer t.release()

		e := t.exec
		ctx, cancel := context.WithCancel(t.ctx)
		defer cancel()

		r := &run{turn: t, yield: yield}
		start := time.Now()
		final, node, err := r.execute(ctx)
		if err == nil {
			err = t.persist(ctx)
		}

		e.fireRunFinish(ctx, &domain.RunEvent{
			Timestamp: time.Now(),
			SessionID: t.sessionID,
			Rounds:    r.rounds,
			Fragments: r.fragments,
			Duration:  time.Since(start),
			Err:       err,
		})

		switch {
		case errors.Is(err, errConsumerGone):
			e.logger.Info("Run abandoned by consumer", "session_id", t.sessionID, "node", node)
		case err != nil:
			e.logger.Warn("Run failed", "session_id", t.sessionID, "node", node, "kind", domain.ErrorKind(err), "err", err)
			if node != "" {
				err = &domain.NodeError{Node: node, Err: err}
			}
			yield(domain.RunFailed(node, err))
		default:
			e.logger.Info("Run finished", "session_id", t.sessionID, "rounds", r.rounds, "messages", t.working.Len()-t.base)
			yield(domain.RunFinished(final))
		}
	}
}

func (t *Turn) persist(ctx context.Context) error {
	msgs := t.working.Messages()
	if err := domain.ValidateTurn(msgs[t.base:]); err != nil {
		return err
	}
	return t.exec.sessions.Commit(ctx, t.sessionID, msgs)
}

// run holds the mutable bookkeeping of one Events call.
type run struct {
	turn      *Turn
	yield     func(domain.ExecutionEvent) bool
	rounds    int
	fragments int
}

func (r *run) emit(ev domain.ExecutionEvent) error {
	if !r.yield(ev) {
		return errConsumerGone
	}
	return nil
}

// execute walks the graph from its entry until the sink.
// It returns the final message, or the node that failed with its error.
func (r *run) execute(ctx context.Context) (domain.Message, domain.NodeID, error) {
	e := r.turn.exec
	current := e.graph.Entry()

	for {
		node, ok := e.graph.Node(current)
		if !ok {
			return domain.Message{}, current, fmt.Errorf("%w: node %q is not defined", domain.ErrInvalidState, current)
		}

		var err error
		switch node.Kind {
		case domain.NodeKindModel:
			err = r.modelTurn(ctx, node)
		case domain.NodeKindTool:
			err = r.toolTurn(ctx, node)
		default:
			err = fmt.Errorf("%w: node %q has unknown kind %q", domain.ErrInvalidState, node.ID, node.Kind)
		}
		if err != nil {
			return domain.Message{}, node.ID, err
		}

		next, err := e.graph.Route(node.ID, r.turn.working)
		if err != nil {
			return domain.Message{}, node.ID, err
		}
		if next == domain.NodeEnd {
			final, _ := r.turn.working.Last()
			return final, "", nil
		}
		if n, ok := e.graph.Node(next); ok && n.Kind == domain.NodeKindTool && r.rounds >= e.maxToolRounds {
			return domain.Message{}, node.ID, fmt.Errorf("%w: %d rounds allowed", domain.ErrLoopLimitExceeded, e.maxToolRounds)
		}
		current = next
	}
}

// modelTurn streams fragments live and commits exactly one message after the
// last fragment. Routing only ever sees the committed message.
func (r *run) modelTurn(ctx context.Context, node domain.Node) error {
	e := r.turn.exec
	ev := r.nodeEvent(node)
	e.fireNodeEnter(ctx, ev)

	stepCtx, cancel := withStepTimeout(ctx, e.stepTimeout)
	defer cancel()

	agg := NewAggregator()
	for frag, err := range e.model.Generate(stepCtx, r.turn.working.Messages()) {
		if err != nil {
			return classify(ctx, stepCtx, err, "model", e.stepTimeout, domain.ErrModelUnavailable,
				domain.ErrModelUnavailable, domain.ErrMalformedResponse)
		}
		agg.Add(frag)
		r.fragments++
		if err := r.emit(domain.FragmentProduced(node.ID, frag)); err != nil {
			return err
		}
	}
	// A model honouring cancellation may end its sequence without an error.
	if stepCtx.Err() != nil {
		return classify(ctx, stepCtx, stepCtx.Err(), "model", e.stepTimeout, domain.ErrModelUnavailable)
	}

	msg := agg.Commit()
	if err := r.turn.working.Append(msg); err != nil {
		return err
	}
	e.logger.Debug("Model message committed",
		"session_id", r.turn.sessionID,
		"fragments", agg.Count(),
		"tool_call", msg.HasPendingToolCall(),
	)
	if err := r.emit(domain.MessageCommitted(node.ID, msg)); err != nil {
		return err
	}

	e.fireNodeLeave(ctx, ev)
	return nil
}

// toolTurn executes the tool call of the last committed model message.
func (r *run) toolTurn(ctx context.Context, node domain.Node) error {
	e := r.turn.exec
	last, ok := r.turn.working.Last()
	if !ok || !last.HasPendingToolCall() {
		return fmt.Errorf("%w: tool node entered without a pending tool call", domain.ErrInvalidState)
	}
	r.rounds++

	ev := r.nodeEvent(node)
	e.fireNodeEnter(ctx, ev)

	call := *last.ToolCall
	toolEv := &domain.ToolEvent{
		Timestamp: time.Now(),
		SessionID: r.turn.sessionID,
		ToolName:  call.Name,
		Input:     call.Args,
	}
	e.fireToolCall(ctx, toolEv)

	start := time.Now()
	msg, callErr := e.tools.Invoke(ctx, call)

	ret := *toolEv
	ret.Timestamp = time.Now()
	ret.Output = msg.Content
	ret.IsError = callErr != nil
	ret.Duration = time.Since(start)
	e.fireToolReturn(ctx, &ret)

	if err := r.turn.working.Append(msg); err != nil {
		return err
	}
	if err := r.emit(domain.MessageCommitted(node.ID, msg)); err != nil {
		return err
	}

	if callErr != nil && (e.toolErrors == ToolErrorsAbort || ctx.Err() != nil) {
		return callErr
	}
	if callErr != nil {
		e.logger.Warn("Tool failed, reporting to model", "session_id", r.turn.sessionID, "tool", call.Name, "err", callErr)
	}

	e.fireNodeLeave(ctx, ev)
	return nil
}

func (r *run) nodeEvent(node domain.Node) *domain.NodeEvent {
	return &domain.NodeEvent{
		Timestamp: time.Now(),
		SessionID: r.turn.sessionID,
		NodeID:    node.ID,
		NodeKind:  node.Kind,
		Round:     r.rounds,
	}
}

func (e *Executor) fireNodeEnter(ctx context.Context, ev *domain.NodeEvent) {
	if e.hooks.OnNodeEnter != nil {
		e.hooks.OnNodeEnter(ctx, ev)
	}
}

func (e *Executor) fireNodeLeave(ctx context.Context, ev *domain.NodeEvent) {
	if e.hooks.OnNodeLeave != nil {
		e.hooks.OnNodeLeave(ctx, ev)
	}
}

func (e *Executor) fireToolCall(ctx context.Context, ev *domain.ToolEvent) {
	if e.hooks.OnToolCall != nil {
		e.hooks.OnToolCall(ctx, ev)
	}
}

func (e *Executor) fireToolReturn(ctx context.Context, ev *domain.ToolEvent) {
	if e.hooks.OnToolReturn != nil {
		e.hooks.OnToolReturn(ctx, ev)
	}
}

func (e *Executor) fireRunFinish(ctx context.Context, ev *domain.RunEvent) {
	if e.hooks.OnRunFinish != nil {
		e.hooks.OnRunFinish(ctx, ev)
	}
}
