package states

import (
	"errors"
	"fmt"
	"strings"
)

// Error names used for Retry and Catch matching.
const (
	ALL                             = "States.ALL"
	Runtime                         = "States.Runtime"
	Timeout                         = "States.Timeout"
	TaskFailed                      = "States.TaskFailed"
	Permissions                     = "States.Permissions"
	ResultPathMatchFailure          = "States.ResultPathMatchFailure"
	ParameterPathFailure            = "States.ParameterPathFailure"
	QueryEvaluationError            = "States.QueryEvaluationError"
	BranchFailed                    = "States.BranchFailed"
	NoChoiceMatched                 = "States.NoChoiceMatched"
	IntrinsicFailure                = "States.IntrinsicFailure"
	ExceedToleratedFailureThreshold = "States.ExceedToleratedFailureThreshold"
	ItemReaderFailed                = "States.ItemReaderFailed"
	ResultWriterFailed              = "States.ResultWriterFailed"

	RuntimeErrorName   = "RuntimeError"
	SimulatorErrorName = "SimulatorError"

	DefaultFailError = "Failed"
	DefaultFailCause = "State machine failed"
)

// Error is a named failure raised while a state machine runs.
// Name is what Retry and Catch match against, Cause is the human readable message.
type Error struct {
	Name  string
	Cause string
	Err   error // optional underlying error
}

func (e *Error) Error() string {
	if e.Cause == "" {
		return e.Name
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ToMap returns the error output object exposed to state data.
func (e *Error) ToMap() map[string]any {
	return map[string]any{
		"Error": e.Name,
		"Cause": e.Cause,
	}
}

// Is reports name equality so errors.Is works against sentinel-style values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Name == e.Name && (t.Cause == "" || t.Cause == e.Cause)
}

// NewError creates an error with a custom name. Backends return these to surface
// domain errors that state machines can Catch by name.
func NewError(name, cause string) *Error {
	return &Error{Name: name, Cause: cause}
}

// Wrap attaches an underlying error.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

func NewRuntimeError(format string, args ...any) *Error {
	return &Error{Name: RuntimeErrorName, Cause: fmt.Sprintf(format, args...)}
}

// NewSimulatorError marks a gap in simulated coverage rather than a domain failure.
func NewSimulatorError(format string, args ...any) *Error {
	return &Error{Name: SimulatorErrorName, Cause: fmt.Sprintf(format, args...)}
}

func NewFailError(name, cause string) *Error {
	if name == "" {
		name = DefaultFailError
	}
	if cause == "" {
		cause = DefaultFailCause
	}
	return &Error{Name: name, Cause: cause}
}

func NewTaskFailed(format string, args ...any) *Error {
	return &Error{Name: TaskFailed, Cause: fmt.Sprintf(format, args...)}
}

func NewTimeout() *Error {
	return &Error{
		Name:  Timeout,
		Cause: `A Task State either ran longer than the "TimeoutSeconds" value, or failed to heartbeat for a time longer than the "HeartbeatSeconds" value.`,
	}
}

func NewResultPathMatchFailure(path string) *Error {
	return &Error{
		Name:  ResultPathMatchFailure,
		Cause: fmt.Sprintf(`A state's "ResultPath" field cannot be applied to the input the state received: %s`, path),
	}
}

func NewParameterPathFailure(path string) *Error {
	return &Error{
		Name:  ParameterPathFailure,
		Cause: fmt.Sprintf(`Within a state's "Parameters" field, the attempt to replace a field whose name ends in ".$" using a Path failed: %s`, path),
	}
}

func NewBranchFailed(err error) *Error {
	return &Error{
		Name:  BranchFailed,
		Cause: fmt.Sprintf("A branch of a Parallel State failed: %v", err),
		Err:   err,
	}
}

func NewNoChoiceMatched() *Error {
	return &Error{
		Name:  NoChoiceMatched,
		Cause: "A Choice State failed to find a match for the condition field extracted from its input.",
	}
}

func NewIntrinsicFailure(detail string) *Error {
	return &Error{
		Name:  IntrinsicFailure,
		Cause: "Within a Payload Template, the attempt to invoke an Intrinsic Function failed.\n" + detail,
	}
}

func NewQueryEvaluationError(expression string, err error) *Error {
	return &Error{
		Name:  QueryEvaluationError,
		Cause: fmt.Sprintf("Failed to evaluate expression [%s]: %v", expression, err),
		Err:   err,
	}
}

func NewExceedToleratedFailureThreshold() *Error {
	return &Error{
		Name:  ExceedToleratedFailureThreshold,
		Cause: "A Map state failed because the number of failed items exceeded the configured tolerated failure threshold.",
	}
}

func NewItemReaderFailed(err error) *Error {
	return &Error{
		Name:  ItemReaderFailed,
		Cause: fmt.Sprintf(`A Map state failed to read all items as specified by the "ItemReader" field: %v`, err),
		Err:   err,
	}
}

func NewResultWriterFailed(err error) *Error {
	return &Error{
		Name:  ResultWriterFailed,
		Cause: fmt.Sprintf(`A Map state failed to write all results as specified by the "ResultWriter" field: %v`, err),
		Err:   err,
	}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Name returns the matchable name of err. Errors that carry no name are reported
// as fallback.
func Name(err error, fallback string) string {
	if se, ok := As(err); ok {
		return se.Name
	}
	return fallback
}

// Matches reports whether name is listed in errorEquals or the list holds the wildcard.
func Matches(errorEquals []string, name string) bool {
	for _, candidate := range errorEquals {
		if candidate == ALL || candidate == name {
			return true
		}
	}
	return false
}

// ValidationError is returned by Load when a definition has problems.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "ValidationError: " + strings.Join(e.Problems, "\n")
}
