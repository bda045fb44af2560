package runtime

import (
	"context"
	"time"
)

// EventBase contains the fields shared by every lifecycle event.
type EventBase struct {
	Timestamp     time.Time
	ExecutionID   string
	ExecutionName string
}

// ExecutionEvent marks the start or the end of an execution. Output and Err
// are only set on end.
type ExecutionEvent struct {
	EventBase
	StateMachine string
	Input        any
	Output       any
	Err          error
	Duration     time.Duration
}

// StateEvent marks entry into or exit from a state. Err is only set on leave.
type StateEvent struct {
	EventBase
	StateName string
	StateType string
	Err       error
	Duration  time.Duration
}

// TaskEvent wraps a single resource invocation.
type TaskEvent struct {
	EventBase
	StateName string
	Resource  string
	Input     any
	Output    any
	IsError   bool
	Duration  time.Duration
}

// Hooks are optional callbacks fired by the executor. They run synchronously
// on the executing goroutine, so Parallel and Map branches call them
// concurrently.
type Hooks struct {
	OnExecutionStart func(context.Context, *ExecutionEvent)
	OnExecutionEnd   func(context.Context, *ExecutionEvent)
	OnStateEnter     func(context.Context, *StateEvent)
	OnStateLeave     func(context.Context, *StateEvent)
	OnTaskCall       func(context.Context, *TaskEvent)
	OnTaskReturn     func(context.Context, *TaskEvent)
}

func (h Hooks) executionStart(ctx context.Context, e *ExecutionEvent) {
	if h.OnExecutionStart != nil {
		h.OnExecutionStart(ctx, e)
	}
}

func (h Hooks) executionEnd(ctx context.Context, e *ExecutionEvent) {
	if h.OnExecutionEnd != nil {
		h.OnExecutionEnd(ctx, e)
	}
}

func (h Hooks) stateEnter(ctx context.Context, e *StateEvent) {
	if h.OnStateEnter != nil {
		h.OnStateEnter(ctx, e)
	}
}

func (h Hooks) stateLeave(ctx context.Context, e *StateEvent) {
	if h.OnStateLeave != nil {
		h.OnStateLeave(ctx, e)
	}
}

func (h Hooks) taskCall(ctx context.Context, e *TaskEvent) {
	if h.OnTaskCall != nil {
		h.OnTaskCall(ctx, e)
	}
}

func (h Hooks) taskReturn(ctx context.Context, e *TaskEvent) {
	if h.OnTaskReturn != nil {
		h.OnTaskReturn(ctx, e)
	}
}

// Merge returns hooks that call h first and then other.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnExecutionStart: chain(h.OnExecutionStart, other.OnExecutionStart),
		OnExecutionEnd:   chain(h.OnExecutionEnd, other.OnExecutionEnd),
		OnStateEnter:     chain(h.OnStateEnter, other.OnStateEnter),
		OnStateLeave:     chain(h.OnStateLeave, other.OnStateLeave),
		OnTaskCall:       chain(h.OnTaskCall, other.OnTaskCall),
		OnTaskReturn:     chain(h.OnTaskReturn, other.OnTaskReturn),
	}
}

func chain[E any](first, second func(context.Context, E)) func(context.Context, E) {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return func(ctx context.Context, e E) {
		first(ctx, e)
		second(ctx, e)
	}
}
