// Package observability exposes Prometheus metrics for tool executions
// and agent runs.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records execution counters and latencies.
type Metrics struct {
	registry *prometheus.Registry

	toolExecutions *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	agentRuns      *prometheus.CounterVec
	agentDuration  *prometheus.HistogramVec
	guardRefusals  *prometheus.CounterVec
}

var (
	globalMetrics *Metrics
	globalOnce    sync.Once
)

// GetGlobalMetrics returns the process-wide metrics instance.
func GetGlobalMetrics() *Metrics {
	globalOnce.Do(func() {
		globalMetrics = NewMetrics()
	})
	return globalMetrics
}

// NewMetrics creates a Metrics instance with its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		toolExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schemaflow_tool_executions_total",
			Help: "Total tool executions by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "schemaflow_tool_duration_seconds",
			Help:    "Tool execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		agentRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schemaflow_agent_runs_total",
			Help: "Total agent runs by agent name and outcome.",
		}, []string{"agent", "outcome"}),
		agentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "schemaflow_agent_run_duration_seconds",
			Help:    "Agent run duration in seconds.",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"agent"}),
		guardRefusals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schemaflow_guard_refusals_total",
			Help: "Tool calls refused by the guard, by tool name and refusal code.",
		}, []string{"tool", "code"}),
	}

	registry.MustRegister(
		m.toolExecutions,
		m.toolDuration,
		m.agentRuns,
		m.agentDuration,
		m.guardRefusals,
	)

	return m
}

// RecordToolExecution records one tool execution.
func (m *Metrics) RecordToolExecution(tool string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.toolExecutions.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordAgentRun records one agent run.
func (m *Metrics) RecordAgentRun(agent string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.agentRuns.WithLabelValues(agent, outcome).Inc()
	m.agentDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordGuardRefusal records a guard refusal.
func (m *Metrics) RecordGuardRefusal(tool, code string) {
	m.guardRefusals.WithLabelValues(tool, code).Inc()
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
