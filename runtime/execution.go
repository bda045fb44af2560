package runtime

import (
	"context"
	"maps"
	"time"

	"github.com/BDNK1/sfnsim/runtime/engine/jsonpath"
)

var _ context.Context = &Execution{}

// ContextObject is the read-only document reachable through $$ in the path
// dialect and states.context in the expression dialect.
type ContextObject struct {
	Execution    ExecutionContext    `json:"Execution"`
	State        StateContext        `json:"State"`
	StateMachine StateMachineContext `json:"StateMachine"`
	Task         *TaskContext        `json:"Task,omitempty"`
	Map          *MapContext         `json:"Map,omitempty"`
}

type ExecutionContext struct {
	Id        string `json:"Id"`
	Input     any    `json:"Input"`
	Name      string `json:"Name"`
	StartTime string `json:"StartTime"`
	RoleArn   string `json:"RoleArn"`
}

type StateContext struct {
	Name        string `json:"Name"`
	EnteredTime string `json:"EnteredTime"`
	RetryCount  int    `json:"RetryCount"`
}

type StateMachineContext struct {
	Id   string `json:"Id"`
	Name string `json:"Name"`
}

type TaskContext struct {
	Token string `json:"Token,omitempty"`
}

type MapContext struct {
	Item MapItem `json:"Item"`
}

type MapItem struct {
	Index int `json:"Index"`
	Value any `json:"Value"`
}

// Variables is the mutable state of one line of execution: the context
// object and the variables set through Assign.
type Variables struct {
	Context  ContextObject
	Assigned map[string]any
}

// Fork returns a deep copy for a Parallel branch or a Map iteration.
func (v *Variables) Fork() *Variables {
	forked := &Variables{
		Context:  v.Context,
		Assigned: make(map[string]any, len(v.Assigned)),
	}
	forked.Context.Execution.Input = jsonpath.DeepCopy(v.Context.Execution.Input)
	if v.Context.Task != nil {
		task := *v.Context.Task
		forked.Context.Task = &task
	}
	if v.Context.Map != nil {
		item := *v.Context.Map
		item.Item.Value = jsonpath.DeepCopy(item.Item.Value)
		forked.Context.Map = &item
	}
	for k, val := range v.Assigned {
		forked.Assigned[k] = jsonpath.DeepCopy(val)
	}
	return forked
}

// Document renders the context object as decoded JSON.
func (c ContextObject) Document() map[string]any {
	doc, err := structToMap(c)
	if err != nil {
		// Input and Map values come from decoded JSON and always re-encode.
		return map[string]any{}
	}
	return doc
}

// Execution is one line of execution of a state machine: the top level run,
// a Parallel branch or a Map iteration. It implements context.Context so it can
// be handed to loggers and resources directly.
type Execution struct {
	ID        string
	Name      string
	Machine   string
	Vars      *Variables
	Container *Container
	ctx       context.Context
}

func (e *Execution) Deadline() (deadline time.Time, ok bool) {
	return e.ctx.Deadline()
}

func (e *Execution) Done() <-chan struct{} {
	return e.ctx.Done()
}

func (e *Execution) Err() error {
	return e.ctx.Err()
}

func (e *Execution) Value(key any) any {
	return e.ctx.Value(key)
}

// WithContext returns a shallow copy of the Execution with a new embedded
// context. Mirrors the http.Request.WithContext pattern.
func (e *Execution) WithContext(ctx context.Context) *Execution {
	copy := *e
	copy.ctx = ctx
	return &copy
}

// Fork returns a child execution with its own variables, for a Parallel branch
// or a Map iteration.
func (e *Execution) Fork(ctx context.Context) *Execution {
	child := e.WithContext(ctx)
	child.Vars = e.Vars.Fork()
	return child
}

// Assign merges evaluated assignments into the variable namespace.
func (e *Execution) Assign(values map[string]any) {
	maps.Copy(e.Vars.Assigned, values)
}

func NewExecution(ctx context.Context, id, name, machine string, container *Container) *Execution {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Execution{
		ID:        id,
		Name:      name,
		Machine:   machine,
		Container: container,
		Vars:      &Variables{Assigned: make(map[string]any)},
		ctx:       ctx,
	}
}
