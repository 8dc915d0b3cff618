package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/agentloop/internal/config"
	agenthttp "github.com/aretw0/agentloop/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds the graceful shutdown of the servers.
const ShutdownTimeout = 5 * time.Second

// Serve runs the agent API, and a metrics listener when one is configured,
// until ctx is canceled.
func Serve(ctx context.Context, app *App, cfg config.ServerConfig) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	var metricsLn net.Listener
	if cfg.MetricsAddr != "" {
		metricsLn, err = net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			ln.Close()
			return err
		}
	}
	return ServeListeners(ctx, app, cfg, ln, metricsLn)
}

// ServeListeners is Serve over already bound listeners. With a nil
// metricsLn the metrics are mounted on the API router at /metrics.
func ServeListeners(ctx context.Context, app *App, cfg config.ServerConfig, ln, metricsLn net.Listener) error {
	metrics := promhttp.HandlerFor(app.Metrics, promhttp.HandlerOpts{})

	opts := []agenthttp.Option{
		agenthttp.WithLogger(app.Logger),
		agenthttp.WithRetryAfter(cfg.RetryAfter.Std()),
	}
	if metricsLn == nil {
		opts = append(opts, agenthttp.WithMetricsHandler(metrics))
	}

	g, gctx := errgroup.WithContext(ctx)
	serve(gctx, g, app, &http.Server{Handler: agenthttp.NewHandler(app.Engine, opts...)}, ln, "api")
	if metricsLn != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics)
		serve(gctx, g, app, &http.Server{Handler: mux}, metricsLn, "metrics")
	}
	return g.Wait()
}

func serve(ctx context.Context, g *errgroup.Group, app *App, srv *http.Server, ln net.Listener, name string) {
	g.Go(func() error {
		app.Logger.Info("Server listening", "server", name, "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("Graceful shutdown did not complete", "server", name, "err", err)
			return srv.Close()
		}
		app.Logger.Info("Server stopped gracefully", "server", name)
		return nil
	})
}
