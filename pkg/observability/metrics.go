package observability

import (
	"context"
	"errors"

	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agentloop"

// Metrics holds the engine collectors.
type Metrics struct {
	NodeVisits   *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec
	Runs         *prometheus.CounterVec
	RunDuration  prometheus.Histogram
	Fragments    prometheus.Counter
	ToolRounds   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node visits",
		}, []string{"node_id", "kind"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Duration of tool executions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool_name", "outcome"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by outcome",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of runs",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		Fragments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_total",
			Help:      "Model fragments streamed",
		}),
		ToolRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_rounds",
			Help:      "Tool round trips per run",
			Buckets:   prometheus.LinearBuckets(0, 1, 9),
		}),
	}

	var errs [6]error
	m.NodeVisits, errs[0] = register(reg, m.NodeVisits)
	m.ToolDuration, errs[1] = register(reg, m.ToolDuration)
	m.Runs, errs[2] = register(reg, m.Runs)
	m.RunDuration, errs[3] = register(reg, m.RunDuration)
	m.Fragments, errs[4] = register(reg, m.Fragments)
	m.ToolRounds, errs[5] = register(reg, m.ToolRounds)
	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing a collector already registered under the same name.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

// MustNewMetrics is NewMetrics that panics on registration errors.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	m, err := NewMetrics(reg)
	if err != nil {
		panic(err)
	}
	return m
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(string(e.NodeID), string(e.NodeKind)).Inc()
		},
		OnToolReturn: func(_ context.Context, e *domain.ToolEvent) {
			outcome := "ok"
			if e.IsError {
				outcome = "error"
			}
			m.ToolDuration.WithLabelValues(e.ToolName, outcome).Observe(e.Duration.Seconds())
		},
		OnRunFinish: func(_ context.Context, e *domain.RunEvent) {
			m.Runs.WithLabelValues(Outcome(e.Err)).Inc()
			m.RunDuration.Observe(e.Duration.Seconds())
			m.Fragments.Add(float64(e.Fragments))
			m.ToolRounds.Observe(float64(e.Rounds))
		},
	}
}

// Outcome labels a run result: "ok" or an error kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.ErrorKind(err)
}
