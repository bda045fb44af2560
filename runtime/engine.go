package runtime

import (
	"time"

	"github.com/BDNK1/sfnsim/runtime/choice"
	"github.com/BDNK1/sfnsim/runtime/states"
)

// DataFlow is the per-dialect half of state execution: everything that turns
// raw state input into the value an action sees and the action result back into
// state output. The state executors only orchestrate.
//
// Every method receives the line of execution it runs in, so implementations
// can read the context object and the assigned variables.
type DataFlow interface {
	// Input computes the effective input from the raw state input.
	Input(e *Execution, s *State, raw any) (any, error)

	// Output computes the state output. hasResult is false for states that
	// produce no result of their own (Choice, Wait, Succeed). Output also
	// applies the state's Assign block.
	Output(e *Execution, s *State, raw, effective, result any, hasResult bool) (any, error)

	// Items returns the array a Map state iterates over.
	Items(e *Execution, s *State, effective any) ([]any, error)

	// ItemInput projects one Map item. e is the item's own line of execution,
	// with the Map context already set.
	ItemInput(e *Execution, s *State, effective, item any) (any, error)

	// Template renders a block of parameters (ItemReader, ResultWriter)
	// against input.
	Template(e *Execution, template any, input any) (any, error)

	// TaskResult shapes the value a resource returned before Output sees it.
	TaskResult(resource string, result any) any

	// Matcher returns the choice rule matcher for a Choice state.
	Matcher(e *Execution, input any) choice.Matcher

	// WaitFor resolves how long a Wait state suspends.
	WaitFor(e *Execution, s *State, input any) (WaitSpec, error)

	// Failure resolves the error name and cause raised by a Fail state.
	Failure(e *Execution, s *State, input any) (name, cause string, err error)

	// Caught computes the output of a state whose error matched c.
	Caught(e *Execution, c *Catcher, raw any, stateErr *states.Error) (any, error)
}

// WaitSpec is the resolved target of a Wait state. Exactly one field is set.
type WaitSpec struct {
	Seconds   *float64
	Timestamp *time.Time
}

// Duration returns how many seconds remain from now. Timestamps in the past
// give zero.
func (w WaitSpec) Duration(now time.Time) float64 {
	switch {
	case w.Seconds != nil:
		return max(*w.Seconds, 0)
	case w.Timestamp != nil:
		return max(w.Timestamp.Sub(now).Seconds(), 0)
	}
	return 0
}
