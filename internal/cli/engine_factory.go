// Package cli wires configuration into a running agentloop application.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/agentloop"
	"github.com/aretw0/agentloop/internal/config"
	"github.com/aretw0/agentloop/internal/logging"
	"github.com/aretw0/agentloop/pkg/adapters/mcp"
	"github.com/aretw0/agentloop/pkg/adapters/mockmodel"
	"github.com/aretw0/agentloop/pkg/adapters/process"
	"github.com/aretw0/agentloop/pkg/adapters/redis"
	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/aretw0/agentloop/pkg/observability"
	"github.com/aretw0/agentloop/pkg/registry"
	"github.com/aretw0/agentloop/pkg/tools/weather"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is a configured engine with the resources it owns.
type App struct {
	Engine  *agentloop.Engine
	Tools   *registry.Registry
	Metrics *prometheus.Registry
	Logger  *slog.Logger
	closers []func() error
}

// Close releases MCP connections and the Redis client.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// NewLogger builds the logger described by the log section.
func NewLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewFormat(cfg.Format, level), nil
}

// BuildTools registers the builtin, process and MCP tools of cfg.
// The returned close function disconnects from MCP servers.
func BuildTools(ctx context.Context, cfg config.ToolsConfig, logger *slog.Logger) (*registry.Registry, func() error, error) {
	reg := registry.NewRegistry()
	for _, name := range cfg.Builtin {
		switch name {
		case weather.Name:
			weather.Register(reg)
		default:
			return nil, nil, fmt.Errorf("unknown builtin tool %q", name)
		}
	}

	if err := process.Register(reg, cfg.Process); err != nil {
		return nil, nil, err
	}

	closeFn := func() error { return nil }
	if len(cfg.MCP) > 0 {
		conns, err := mcp.Discover(ctx, reg, cfg.MCP, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn = conns.Close
	}

	logger.Debug("Tools registered", "count", reg.Len())
	return reg, closeFn, nil
}

// Build creates the engine described by cfg.
// Node and tool events are logged only when debug is set. Metrics are always
// collected into a private Prometheus registry.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, debug bool) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	app := &App{Logger: logger, Metrics: prometheus.NewRegistry()}

	tools, closeTools, err := BuildTools(ctx, cfg.Tools, logger)
	if err != nil {
		return nil, fmt.Errorf("error registering tools: %w", err)
	}
	app.Tools = tools
	app.closers = append(app.closers, closeTools)

	app.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics(app.Metrics)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	hooks := []domain.LifecycleHooks{metrics.Hooks()}
	if debug {
		hooks = append(hooks, observability.LogHooks(logger))
	}

	policy := agentloop.ToolErrorsAbort
	if cfg.Engine.ToolErrors == "report" {
		policy = agentloop.ToolErrorsReport
	}

	opts := []agentloop.Option{
		agentloop.WithLogger(logger),
		agentloop.WithMaxToolRounds(cfg.Engine.MaxToolRounds),
		agentloop.WithStepTimeout(cfg.Engine.StepTimeout.Std()),
		agentloop.WithToolErrorPolicy(policy),
		agentloop.WithLifecycleHooks(observability.Combine(hooks...)),
	}

	if cfg.Redis.Addr != "" {
		locker := redis.NewLocker(redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB), cfg.Redis.Prefix)
		app.closers = append(app.closers, locker.Close)
		opts = append(opts, agentloop.WithLocker(locker, cfg.Redis.LockTTL.Std()))
		logger.Info("Distributed session lock enabled", "redis", cfg.Redis.Addr)
	}

	model := mockmodel.New(
		mockmodel.WithTools(tools),
		mockmodel.WithChunkDelay(cfg.Model.ChunkDelay.Std()),
	)

	engine, err := agentloop.New(model, tools, opts...)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	app.Engine = engine
	return app, nil
}
