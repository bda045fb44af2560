package runtime

import (
	"fmt"
	"log/slog"

	"github.com/BDNK1/sfnsim/runtime/engine/expr"
	"github.com/BDNK1/sfnsim/runtime/intrinsics"
	"github.com/BDNK1/sfnsim/runtime/states"
)

// timestampLayout is the millisecond precision format of context timestamps.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Executor drives state machine definitions. It walks from StartAt to a
// terminal state, dispatching each state to its executor, and is shared by
// every execution of a loaded state machine. It holds no per-execution state.
type Executor struct {
	l         *slog.Logger
	opts      *Options
	container *Container
	hooks     Hooks
	telemetry *telemetry
	flows     map[string]DataFlow
}

func NewExecutor(opts *Options, container *Container) (*Executor, error) {
	resolved, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	tel, err := newTelemetry(resolved.TracerProvider, resolved.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry: %w", err)
	}

	library := intrinsics.New(intrinsics.WithUUID(resolved.NewToken))
	return &Executor{
		l:         resolved.Logger,
		opts:      resolved,
		container: container,
		hooks:     resolved.Hooks,
		telemetry: tel,
		flows: map[string]DataFlow{
			QueryLanguageJSONPath: newPathFlow(library),
			QueryLanguageJSONata:  newExprFlow(resolved.Logger, expr.NewEvaluator(library)),
		},
	}, nil
}

func (x *Executor) eventBase(e *Execution) EventBase {
	return EventBase{
		Timestamp:     x.opts.Now(),
		ExecutionID:   e.ID,
		ExecutionName: e.Name,
	}
}

// dataFlow resolves the dialect of a state: its own QueryLanguage, then the
// definition's, then the one inherited from the enclosing scope.
func (x *Executor) dataFlow(s *State, inherited string) (DataFlow, string, error) {
	language := inherited
	if s.QueryLanguage != "" {
		language = s.QueryLanguage
	}
	flow, ok := x.flows[language]
	if !ok {
		return nil, "", states.NewRuntimeError("Unrecognised QueryLanguage %s", language)
	}
	return flow, language, nil
}

// executeStateMachine runs def from StartAt until a state ends the execution.
// language is the dialect of the enclosing scope. Returned errors are always
// named.
func (x *Executor) executeStateMachine(e *Execution, def *Definition, input any, language string) (any, error) {
	if def.QueryLanguage != "" {
		language = def.QueryLanguage
	}

	current := def.StartAt
	for {
		if err := e.Err(); err != nil {
			return nil, asStateError(err)
		}

		s, ok := def.States[current]
		if !ok || s == nil {
			return nil, states.NewRuntimeError("State [%s] not found", current)
		}

		output, next, err := x.executeState(e, current, s, input, language)
		if err != nil {
			return nil, asStateError(err)
		}
		if next == "" {
			return output, nil
		}

		x.l.DebugContext(e, fmt.Sprintf("Transition %s -> %s", current, next))
		input, current = output, next
	}
}

// executeState runs one state and returns its output and the next state name.
// An empty next ends the enclosing state machine.
func (x *Executor) executeState(e *Execution, name string, s *State, input any, language string) (output any, next string, err error) {
	start := x.opts.Now()
	e.Vars.Context.State = StateContext{
		Name:        name,
		EnteredTime: start.UTC().Format(timestampLayout),
	}
	e.Vars.Context.Task = nil

	ctx, span := x.telemetry.startState(e, name, s.Type)
	se := e.WithContext(ctx)
	defer func() { endSpan(span, err) }()

	x.hooks.stateEnter(se, &StateEvent{EventBase: x.eventBase(se), StateName: name, StateType: s.Type})
	defer func() {
		x.hooks.stateLeave(se, &StateEvent{
			EventBase: x.eventBase(se),
			StateName: name,
			StateType: s.Type,
			Err:       err,
			Duration:  x.opts.Now().Sub(start),
		})
	}()

	x.l.InfoContext(se, fmt.Sprintf("Executing state: %s (%s)", name, s.Type))

	flow, language, err := x.dataFlow(s, language)
	if err != nil {
		return nil, "", err
	}

	switch s.Type {
	case TypePass:
		output, err = x.pass(se, s, flow, input)
		next = s.successor()
	case TypeTask:
		output, next, err = x.supervise(se, s, flow, input, func() (any, error) {
			return x.task(se, s, flow, input)
		})
	case TypeChoice:
		output, next, err = x.choose(se, s, flow, input)
	case TypeParallel:
		output, next, err = x.supervise(se, s, flow, input, func() (any, error) {
			return x.parallel(se, s, flow, input, language)
		})
	case TypeMap:
		output, next, err = x.supervise(se, s, flow, input, func() (any, error) {
			return x.mapState(se, s, flow, input, language)
		})
	case TypeWait:
		output, err = x.wait(se, s, flow, input)
		next = s.successor()
	case TypeSucceed:
		output, err = x.succeed(se, s, flow, input)
	case TypeFail:
		err = x.fail(se, s, flow, input)
	default:
		err = states.NewRuntimeError("Unrecognised state Type %s", s.Type)
	}

	if err != nil {
		x.l.ErrorContext(se, fmt.Sprintf("State %s failed", name), "error", err)
		return nil, "", err
	}
	return output, next, nil
}
