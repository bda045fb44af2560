// Package metrics exposes execution lifecycle events as Prometheus metrics.
package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BDNK1/sfnsim/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry          *prometheus.Registry
	executions        *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	stateVisits       *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sfnsim_executions_total",
				Help: "Executions finished, by state machine and status",
			},
			[]string{"state_machine", "status"},
		),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "sfnsim_execution_duration_seconds",
				Help: "Duration of executions",
			},
			[]string{"state_machine"},
		),
		stateVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sfnsim_state_visits_total",
				Help: "States entered, by name and type",
			},
			[]string{"state", "type"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "sfnsim_task_duration_seconds",
				Help: "Duration of task resource calls",
			},
			[]string{"resource", "outcome"},
		),
	}
	m.registry.MustRegister(m.executions, m.executionDuration, m.stateVisits, m.taskDuration)
	return m
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks records lifecycle events and logs them at debug level.
func (m *Metrics) Hooks(l *slog.Logger) runtime.Hooks {
	return runtime.Hooks{
		OnExecutionStart: func(ctx context.Context, e *runtime.ExecutionEvent) {
			l.DebugContext(ctx, "execution_start", "state_machine", e.StateMachine, "execution_id", e.ExecutionID)
		},
		OnExecutionEnd: func(ctx context.Context, e *runtime.ExecutionEvent) {
			status := runtime.StatusSucceeded
			if e.Err != nil {
				status = runtime.StatusFailed
			}
			m.executions.WithLabelValues(e.StateMachine, status).Inc()
			m.executionDuration.WithLabelValues(e.StateMachine).Observe(e.Duration.Seconds())
			l.DebugContext(ctx, "execution_end",
				"state_machine", e.StateMachine,
				"execution_id", e.ExecutionID,
				"status", status,
			)
		},
		OnStateEnter: func(ctx context.Context, e *runtime.StateEvent) {
			m.stateVisits.WithLabelValues(e.StateName, e.StateType).Inc()
			l.DebugContext(ctx, "state_enter", "state", e.StateName, "type", e.StateType)
		},
		OnTaskReturn: func(ctx context.Context, e *runtime.TaskEvent) {
			outcome := "success"
			if e.IsError {
				outcome = "error"
			}
			m.taskDuration.WithLabelValues(e.Resource, outcome).Observe(e.Duration.Seconds())
		},
	}
}
