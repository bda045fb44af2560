package runtime

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/BDNK1/sfnsim/runtime/states"
)

const instrumentationName = "github.com/BDNK1/sfnsim/runtime"

// telemetry holds the tracer and metric instruments of one state machine.
// Without explicit providers the global ones are used, which are no-ops until
// an SDK is installed.
type telemetry struct {
	tracer      trace.Tracer
	executions  metric.Int64Counter
	transitions metric.Int64Counter
	retries     metric.Int64Counter
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*telemetry, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	meter := mp.Meter(instrumentationName)

	executions, err := meter.Int64Counter("sfnsim.executions",
		metric.WithDescription("Executions finished, by status"))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("sfnsim.state.transitions",
		metric.WithDescription("States entered, by type"))
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter("sfnsim.task.retries",
		metric.WithDescription("Retries performed, by error name"))
	if err != nil {
		return nil, err
	}

	return &telemetry{
		tracer:      tp.Tracer(instrumentationName),
		executions:  executions,
		transitions: transitions,
		retries:     retries,
	}, nil
}

func (t *telemetry) startExecution(ctx context.Context, machine, executionID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "execution "+machine,
		trace.WithAttributes(
			attribute.String("sfn.state_machine", machine),
			attribute.String("sfn.execution_id", executionID),
		))
}

func (t *telemetry) startState(ctx context.Context, name, stateType string) (context.Context, trace.Span) {
	t.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("sfn.state_type", stateType)))
	return t.tracer.Start(ctx, "state "+name,
		trace.WithAttributes(
			attribute.String("sfn.state_name", name),
			attribute.String("sfn.state_type", stateType),
		))
}

func (t *telemetry) recordRetry(ctx context.Context, state, errorName string) {
	t.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sfn.state_name", state),
		attribute.String("sfn.error", errorName),
	))
}

func (t *telemetry) recordExecution(ctx context.Context, machine string, err error) {
	status := "SUCCEEDED"
	if err != nil {
		status = "FAILED"
	}
	t.executions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sfn.state_machine", machine),
		attribute.String("sfn.status", status),
	))
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if name := states.Name(err, ""); name != "" {
			span.SetAttributes(attribute.String("sfn.error", name))
		}
	}
	span.End()
}
