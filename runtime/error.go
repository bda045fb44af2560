package runtime

import (
	"context"
	"errors"

	"github.com/BDNK1/sfnsim/runtime/states"
)

// ExecutionError is returned by StateMachine.Execute when an execution fails.
// It keeps the execution it belongs to next to the underlying states error.
type ExecutionError struct {
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ToMap renders the failure as the {Error, Cause} object used in outputs.
func (e *ExecutionError) ToMap() map[string]any {
	return errorOutput(e.Err)
}

// asStateError converts any error raised while running a state into a named
// error. Unnamed errors become States.Runtime.
func asStateError(err error) *states.Error {
	if se, ok := states.As(err); ok {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return states.NewTimeout().Wrap(err)
	}
	return states.NewError(states.Runtime, err.Error()).Wrap(err)
}

// resourceError converts an error returned by a resource. Named errors pass
// through and anything else is a task failure.
func resourceError(err error) error {
	if _, ok := states.As(err); ok {
		return err
	}
	return states.NewTaskFailed("%s", err.Error()).Wrap(err)
}

// errorOutput is the {Error, Cause} object merged into state output by Catch.
func errorOutput(err error) map[string]any {
	return asStateError(err).ToMap()
}
