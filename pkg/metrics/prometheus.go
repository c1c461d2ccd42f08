// Package metrics exposes Prometheus instrumentation for the conversation
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the pipeline's metric vectors. Construct once at startup
// and inject; collectors self-register on the default registry.
type Recorder struct {
	turns          *prometheus.CounterVec
	turnDuration   *prometheus.HistogramVec
	toolExecutions *prometheus.CounterVec
	handoffs       *prometheus.CounterVec
	dispatches     *prometheus.CounterVec
}

// NewRecorder creates and registers the pipeline metrics.
func NewRecorder() *Recorder {
	return &Recorder{
		turns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propline_turns_total",
			Help: "Conversation turns processed, by worker and outcome.",
		}, []string{"worker", "outcome"}),
		turnDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "propline_turn_duration_seconds",
			Help:    "End-to-end turn processing time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"worker"}),
		toolExecutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propline_tool_executions_total",
			Help: "Tool invocations, by tool name and result.",
		}, []string{"tool", "result"}),
		handoffs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propline_handoffs_total",
			Help: "Worker handoffs, by source and target worker.",
		}, []string{"from", "to"}),
		dispatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propline_dispatch_decisions_total",
			Help: "Dispatch evaluator decisions recorded on issues.",
		}, []string{"decision"}),
	}
}

// RecordTurn counts one processed turn.
func (r *Recorder) RecordTurn(worker, outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.turns.WithLabelValues(worker, outcome).Inc()
	r.turnDuration.WithLabelValues(worker).Observe(seconds)
}

// RecordTool counts one tool execution.
func (r *Recorder) RecordTool(tool string, isError bool) {
	if r == nil {
		return
	}
	result := "ok"
	if isError {
		result = "error"
	}
	r.toolExecutions.WithLabelValues(tool, result).Inc()
}

// RecordHandoff counts one worker handoff.
func (r *Recorder) RecordHandoff(from, to string) {
	if r == nil {
		return
	}
	r.handoffs.WithLabelValues(from, to).Inc()
}

// RecordDispatchDecision counts one evaluator decision.
func (r *Recorder) RecordDispatchDecision(decision string) {
	if r == nil {
		return
	}
	r.dispatches.WithLabelValues(decision).Inc()
}
