/*
Package observability turns engine lifecycle hooks into Prometheus metrics and
structured log lines.

Hook sets compose with Combine:

	metrics := observability.MustNewMetrics(prometheus.DefaultRegisterer)
	hooks := observability.Combine(metrics.Hooks(), observability.LogHooks(logger))
	eng, err := agentloop.New(model, tools, agentloop.WithLifecycleHooks(hooks))
*/
package observability
