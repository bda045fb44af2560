package runtime

import (
	"context"
	"fmt"

	"github.com/BDNK1/sfnsim/runtime/engine/jsonpath"
	"github.com/BDNK1/sfnsim/runtime/states"
)

var _ Executable = (*StateMachine)(nil)

// StateMachine is a loaded, validated definition bound to its resources.
// Execute may be called concurrently.
type StateMachine struct {
	name     string
	def      *Definition
	executor *Executor
}

// Load validates def, registers resources in a new catalog and returns a
// state machine ready to execute. opts may be nil.
func Load(def *Definition, resources []Resource, opts *Options) (*StateMachine, error) {
	container := NewContainer()
	for _, r := range resources {
		if err := container.Register(r); err != nil {
			return nil, fmt.Errorf("failed to register resource: %w", err)
		}
	}
	return load(def, container, opts)
}

func load(def *Definition, container *Container, opts *Options) (*StateMachine, error) {
	if def == nil {
		return nil, fmt.Errorf("definition cannot be nil")
	}

	executor, err := NewExecutor(opts, container)
	if err != nil {
		return nil, err
	}

	if *executor.opts.ValidateDefinition {
		if problems := Validate(def); len(problems) > 0 {
			return nil, &states.ValidationError{Problems: problems}
		}
	}

	return &StateMachine{
		name:     executor.opts.StateMachineName,
		def:      def,
		executor: executor,
	}, nil
}

func (m *StateMachine) Name() string {
	return m.name
}

func (m *StateMachine) Definition() *Definition {
	return m.def
}

// Container returns the resource catalog, for Initialize and Shutdown.
func (m *StateMachine) Container() *Container {
	return m.executor.container
}

// Execute runs the state machine against input and returns its output. A
// failed execution returns an *ExecutionError wrapping the named error.
func (m *StateMachine) Execute(ctx context.Context, input any) (any, error) {
	result := m.Run(ctx, input)
	return result.Output, result.Err
}

// Result is the outcome of one execution.
type Result struct {
	ExecutionID string
	Output      any
	Err         error
}

// Run is Execute reporting the execution ID as well.
func (m *StateMachine) Run(ctx context.Context, input any) Result {
	id := m.executor.opts.NewToken()
	output, err := m.run(ctx, id, input)
	return Result{ExecutionID: id, Output: output, Err: err}
}

func (m *StateMachine) run(ctx context.Context, id string, input any) (output any, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	x := m.executor

	normalized, err := jsonpath.Normalize(input)
	if err != nil {
		return nil, fmt.Errorf("invalid execution input: %w", err)
	}

	start := x.opts.Now()

	ctx, span := x.telemetry.startExecution(ctx, m.name, id)
	e := NewExecution(ctx, id, x.opts.ExecutionName, m.name, x.container)
	e.Vars.Context = ContextObject{
		Execution: ExecutionContext{
			Id:        executionARN(x.opts.Region, x.opts.AccountID, m.name, id),
			Input:     jsonpath.DeepCopy(normalized),
			Name:      x.opts.ExecutionName,
			StartTime: start.UTC().Format(timestampLayout),
			RoleArn:   roleARN(x.opts.AccountID, m.name),
		},
		StateMachine: StateMachineContext{
			Id:   stateMachineARN(x.opts.Region, x.opts.AccountID, m.name),
			Name: m.name,
		},
	}

	x.hooks.executionStart(e, &ExecutionEvent{EventBase: x.eventBase(e), StateMachine: m.name, Input: normalized})
	x.l.InfoContext(e, fmt.Sprintf("Starting execution %s of %s", id, m.name))

	defer func() {
		x.telemetry.recordExecution(e, m.name, err)
		endSpan(span, err)
		x.hooks.executionEnd(e, &ExecutionEvent{
			EventBase:    x.eventBase(e),
			StateMachine: m.name,
			Input:        normalized,
			Output:       output,
			Err:          err,
			Duration:     x.opts.Now().Sub(start),
		})
	}()

	language := m.def.QueryLanguage
	if language == "" {
		language = x.opts.QueryLanguage
	}

	output, err = x.executeStateMachine(e, m.def, normalized, language)
	if err != nil {
		x.l.ErrorContext(e, fmt.Sprintf("Execution %s failed", id), "error", err)
		return nil, &ExecutionError{ExecutionID: id, Err: err}
	}
	x.l.InfoContext(e, fmt.Sprintf("Execution %s succeeded", id))
	return output, nil
}
